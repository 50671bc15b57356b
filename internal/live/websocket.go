package live

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const handshakeTimeout = 10 * time.Second

type wsSubscriber struct {
	opts      options
	streamURL func(int64) string
}

// Subscribe dials the stream endpoint with the ws/wss scheme.
func (s *wsSubscriber) Subscribe(ctx context.Context, studentID int64) (*Subscription, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	target, err := websocketURL(s.streamURL(studentID))
	if err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
		Jar:              s.opts.http.Jar,
	}
	header := http.Header{}
	header.Set("X-Request-ID", s.opts.requestID())
	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("live: subscribe student %d: unexpected status %d", studentID, resp.StatusCode)
		}
		return nil, fmt.Errorf("live: subscribe student %d: %w", studentID, err)
	}

	p := newPump(studentID, s.opts, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	s.opts.logger.Printf("live: student %d websocket stream open at %s", studentID, target)
	go func() {
		p.finish(readMessages(conn, p.deliver))
	}()
	return p.sub, nil
}

func readMessages(conn *websocket.Conn, emit func(event, data string)) error {
	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure {
				return nil
			}
			return err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			emit("message", string(payload))
		}
	}
}

func websocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("live: parse stream url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("live: unsupported stream scheme %q", u.Scheme)
	}
	return u.String(), nil
}
