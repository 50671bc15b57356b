package stubserver

import (
	"net/http/httptest"
	"testing"

	"github.com/Gantu78/WebReactivaFront/internal/model"
)

// NewTestServer mounts a fresh stub on an httptest server and tears both down
// when the test ends. Open streams are closed first so Close does not block.
func NewTestServer(tb testing.TB, opts ...Option) (*Server, *httptest.Server) {
	tb.Helper()
	stub := New(opts...)
	ts := httptest.NewServer(stub)
	tb.Cleanup(func() {
		stub.CloseStreams()
		ts.CloseClientConnections()
		ts.Close()
	})
	return stub, ts
}

// SeedSubject stores a subject directly and returns it with its id.
func (s *Server) SeedSubject(tb testing.TB, name string, credits int) model.Subject {
	tb.Helper()
	subj, err := s.store.saveSubject(0, model.Subject{Name: name, CreditCount: credits})
	if err != nil {
		tb.Fatalf("seed subject %s: %v", name, err)
	}
	return subj
}

// SeedStudent stores a student directly and returns it with its id.
func (s *Server) SeedStudent(tb testing.TB, first, last, email string) model.Student {
	tb.Helper()
	st, err := s.store.saveStudent(0, model.Student{FirstName: first, LastName: last, Email: email})
	if err != nil {
		tb.Fatalf("seed student %s: %v", email, err)
	}
	return st
}

// SeedGrade stores a grade directly and returns it with its id.
func (s *Server) SeedGrade(tb testing.TB, g model.Grade) model.Grade {
	tb.Helper()
	saved, _, err := s.store.saveGrade(0, g)
	if err != nil {
		tb.Fatalf("seed grade: %v", err)
	}
	return saved
}
