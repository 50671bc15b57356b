package stubserver

import (
	"sync"
)

const defaultStreamCapacity = 16

// averageEvent is pushed to every open stream of a student whenever one of
// that student's grades changes.
type averageEvent struct {
	StudentID int64   `json:"studentId"`
	SubjectID int64   `json:"subjectId"`
	Average   float64 `json:"average"`
}

// hub fans average events out to the open streams of each student.
type hub struct {
	mu          sync.RWMutex
	subscribers map[int64]map[*stream]struct{}
	capacity    int
	closed      bool
}

func newHub(capacity int) *hub {
	if capacity <= 0 {
		capacity = defaultStreamCapacity
	}
	return &hub{
		subscribers: map[int64]map[*stream]struct{}{},
		capacity:    capacity,
	}
}

func (h *hub) subscribe(studentID int64) *stream {
	st := &stream{ch: make(chan averageEvent, h.capacity)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		st.close()
		return st
	}
	if h.subscribers[studentID] == nil {
		h.subscribers[studentID] = map[*stream]struct{}{}
	}
	h.subscribers[studentID][st] = struct{}{}
	return st
}

func (h *hub) unsubscribe(studentID int64, st *stream) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.subscribers[studentID]; subs != nil {
		delete(subs, st)
		if len(subs) == 0 {
			delete(h.subscribers, studentID)
		}
	}
	st.close()
}

func (h *hub) publish(evt averageEvent) {
	h.mu.RLock()
	live := h.subscribers[evt.StudentID]
	subs := make([]*stream, 0, len(live))
	for st := range live {
		subs = append(subs, st)
	}
	h.mu.RUnlock()
	for _, st := range subs {
		st.deliver(evt)
	}
}

func (h *hub) count(studentID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[studentID])
}

// close ends every open stream; handlers return once their channel closes.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, subs := range h.subscribers {
		for st := range subs {
			st.close()
		}
		delete(h.subscribers, id)
	}
}

type stream struct {
	ch      chan averageEvent
	closed  bool
	closeMu sync.Mutex
}

// deliver drops the oldest pending event when the stream is full.
func (s *stream) deliver(evt averageEvent) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- evt:
	default:
		select {
		case <-s.ch:
		default:
		}
		s.ch <- evt
	}
}

func (s *stream) close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
