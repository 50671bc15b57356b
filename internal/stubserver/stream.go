package stubserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	streamKeepAlive = 15 * time.Second
	wsWriteWait     = 5 * time.Second
)

// streamAverage serves the per-student live channel. WebSocket upgrade
// requests get a socket; everything else gets text/event-stream.
func (s *Server) streamAverage(c echo.Context) error {
	studentID, err := pathID(c, "studentId")
	if err != nil {
		return err
	}
	if websocket.IsWebSocketUpgrade(c.Request()) {
		return s.streamWebSocket(c, studentID)
	}
	return s.streamSSE(c, studentID)
}

func (s *Server) streamSSE(c echo.Context, studentID int64) error {
	sub := s.hub.subscribe(studentID)
	defer s.hub.unsubscribe(studentID, sub)

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, ": subscribed to student %d\n\n", studentID)
	w.Flush()
	s.logger.Printf("stub: sse stream opened for student %d", studentID)
	defer s.logger.Printf("stub: sse stream closed for student %d", studentID)

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			w.Flush()
		case evt, ok := <-sub.ch:
			if !ok {
				return nil
			}
			data, err := json.Marshal(evt)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "event: average\ndata: %s\n\n", data)
			w.Flush()
		}
	}
}

func (s *Server) streamWebSocket(c echo.Context, studentID int64) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return nil
	}
	defer conn.Close()
	sub := s.hub.subscribe(studentID)
	defer s.hub.unsubscribe(studentID, sub)
	s.logger.Printf("stub: websocket stream opened for student %d", studentID)
	defer s.logger.Printf("stub: websocket stream closed for student %d", studentID)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return nil
		case evt, ok := <-sub.ch:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed"))
				return nil
			}
			if err := conn.WriteJSON(evt); err != nil {
				return nil
			}
		}
	}
}
