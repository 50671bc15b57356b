package tui

import (
	"net/http"
	"strings"
	"testing"

	"github.com/Gantu78/WebReactivaFront/internal/feedback"
	"github.com/Gantu78/WebReactivaFront/internal/stubserver"
)

func TestSubjectCreateEditDelete(t *testing.T) {
	h := newHarness(t, nil)

	h.press(t, "n")
	if title := h.app.subjectsView.form.title(); title != "New subject" {
		t.Fatalf("unexpected form title %q", title)
	}
	h.typeText(t, "Math101")
	h.press(t, "tab")
	h.typeText(t, "4")
	h.press(t, "enter")

	subjects := h.app.subjectsView.subjects
	if len(subjects) != 1 || subjects[0].ID == nil || subjects[0].Name != "Math101" {
		t.Fatalf("created subject missing from list: %+v", subjects)
	}
	if h.app.subjectsView.form.active {
		t.Fatalf("form should close after a successful save")
	}
	if h.app.notice.kind != noticeSuccess {
		t.Fatalf("expected success notice, got %+v", h.app.notice)
	}
	id := *subjects[0].ID

	h.press(t, "e")
	if !strings.HasPrefix(h.app.subjectsView.form.title(), "Edit subject") {
		t.Fatalf("edit should switch the form title, got %q", h.app.subjectsView.form.title())
	}
	h.app.subjectsView.form.inputs[1].SetValue("5")
	h.press(t, "enter")
	subjects = h.app.subjectsView.subjects
	if len(subjects) != 1 {
		t.Fatalf("edit must replace, not duplicate: %+v", subjects)
	}
	if *subjects[0].ID != id || subjects[0].CreditCount != 5 {
		t.Fatalf("expected subject %d with 5 credits, got %+v", id, subjects[0])
	}

	h.press(t, "d")
	if h.app.subjectsView.confirm == nil {
		t.Fatalf("delete should ask for confirmation")
	}
	h.press(t, "n")
	if len(h.app.subjectsView.subjects) != 1 {
		t.Fatalf("declined delete must keep the subject")
	}
	h.press(t, "d", "y")
	if len(h.app.subjectsView.subjects) != 0 {
		t.Fatalf("deleted subject still listed: %+v", h.app.subjectsView.subjects)
	}
	if len(h.app.subjects) != 0 {
		t.Fatalf("coordinator list not refreshed after delete")
	}
}

func TestSubjectNonNumericCreditsRejectedLocally(t *testing.T) {
	h := newHarness(t, nil)
	h.press(t, "n")
	h.typeText(t, "Math101")
	h.press(t, "tab")
	h.typeText(t, "four")
	h.press(t, "enter")
	if h.app.notice.kind != noticeError || !strings.Contains(h.app.notice.text, "whole number") {
		t.Fatalf("expected local validation error, got %+v", h.app.notice)
	}
	if n := h.stub.CountRequests(http.MethodPost, "/api/subjects"); n != 0 {
		t.Fatalf("invalid input must not reach the backend, saw %d POSTs", n)
	}
	if got := h.app.subjectsView.form.value(0); got != "Math101" {
		t.Fatalf("form contents should be kept, got %q", got)
	}
}

func TestSubjectDuplicateNameKeepsForm(t *testing.T) {
	h := newHarness(t, func(s *stubserver.Server) {
		s.SeedSubject(t, "Math101", 4)
	})
	h.press(t, "n")
	h.typeText(t, "Math101")
	h.press(t, "tab")
	h.typeText(t, "3")
	h.press(t, "enter")
	if h.app.notice.text != feedback.MsgSubjectNameTaken {
		t.Fatalf("expected duplicate-name message, got %q", h.app.notice.text)
	}
	if !h.app.subjectsView.form.active || h.app.subjectsView.form.value(1) != "3" {
		t.Fatalf("failed save should keep the form open with its contents")
	}
	if len(h.app.subjectsView.subjects) != 1 {
		t.Fatalf("list should be unchanged")
	}
}

func TestStudentCreateAndDuplicateEmail(t *testing.T) {
	h := newHarness(t, func(s *stubserver.Server) {
		s.SeedStudent(t, "Jane", "Doe", "jane@example.com")
	})
	h.press(t, "2", "n")
	h.typeText(t, "John")
	h.press(t, "tab")
	h.typeText(t, "Roe")
	h.press(t, "tab")
	h.typeText(t, "john@example.com")
	h.press(t, "enter")
	if got := len(h.app.studentsView.students); got != 2 {
		t.Fatalf("expected 2 students after create, got %d", got)
	}
	if h.app.studentsView.students[1].ID == nil {
		t.Fatalf("created student should carry a server id")
	}

	h.press(t, "n")
	h.typeText(t, "Janet")
	h.press(t, "tab")
	h.typeText(t, "Doe")
	h.press(t, "tab")
	h.typeText(t, "jane@example.com")
	h.press(t, "enter")
	if h.app.notice.text != feedback.MsgEmailTaken {
		t.Fatalf("expected duplicate-email message, got %q", h.app.notice.text)
	}
	if got := h.app.studentsView.form.value(2); got != "jane@example.com" {
		t.Fatalf("form should keep the rejected email, got %q", got)
	}
}

func TestStudentEditAndDelete(t *testing.T) {
	h := newHarness(t, func(s *stubserver.Server) {
		s.SeedStudent(t, "Jane", "Doe", "jane@example.com")
	})
	h.press(t, "2", "e")
	h.app.studentsView.form.inputs[1].SetValue("Smith")
	h.press(t, "enter")
	students := h.app.studentsView.students
	if len(students) != 1 || students[0].LastName != "Smith" {
		t.Fatalf("expected edited student in place, got %+v", students)
	}
	h.press(t, "d", "y")
	if len(h.app.studentsView.students) != 0 {
		t.Fatalf("student should be gone after delete")
	}
}

func TestDeleteFailureIsReported(t *testing.T) {
	h := newHarness(t, func(s *stubserver.Server) {
		s.SeedStudent(t, "Jane", "Doe", "jane@example.com")
	})
	h.stub.FailNext(http.MethodDelete, "/api/students", http.StatusInternalServerError, "constraint violation")
	h.press(t, "2", "d", "y")
	if h.app.notice.kind != noticeError || !strings.Contains(h.app.notice.text, "constraint violation") {
		t.Fatalf("expected delete error, got %+v", h.app.notice)
	}
	if len(h.app.studentsView.students) != 1 {
		t.Fatalf("failed delete must leave the list alone")
	}
	h.press(t, "x", "d", "y")
	if len(h.app.studentsView.students) != 0 {
		t.Fatalf("interaction should continue after a failed delete")
	}
}
