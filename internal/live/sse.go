package live

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxEventLine = 64 * 1024

type sseSubscriber struct {
	opts      options
	streamURL func(int64) string
}

// Subscribe returns once the backend has answered 200. ctx bounds only the
// handshake; the stream lives until Close or until the backend ends it.
func (s *sseSubscriber) Subscribe(ctx context.Context, studentID int64) (*Subscription, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	streamCtx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	url := s.streamURL(studentID)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("live: build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Request-ID", s.opts.requestID())

	resp, err := s.opts.http.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("live: subscribe student %d: %w", studentID, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("live: subscribe student %d: unexpected status %d", studentID, resp.StatusCode)
	}
	if !stop() {
		// ctx was cancelled while the handshake completed.
		resp.Body.Close()
		return nil, fmt.Errorf("live: subscribe student %d: %w", studentID, ctx.Err())
	}

	p := newPump(studentID, s.opts, cancel)
	s.opts.logger.Printf("live: student %d sse stream open at %s", studentID, url)
	go func() {
		defer resp.Body.Close()
		p.finish(readEvents(resp.Body, p.deliver))
	}()
	return p.sub, nil
}

// readEvents parses a text/event-stream body and calls emit for every
// dispatched event. Comment lines are ignored. It returns nil on a clean EOF.
func readEvents(r io.Reader, emit func(event, data string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxEventLine)
	var (
		event string
		data  []string
	)
	dispatch := func() {
		if event != "" || len(data) > 0 {
			if event == "" {
				event = "message"
			}
			emit(event, strings.Join(data, "\n"))
		}
		event, data = "", nil
	}
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			dispatch()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
		case "data":
			data = append(data, value)
		}
	}
	return scanner.Err()
}
