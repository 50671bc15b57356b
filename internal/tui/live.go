package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Gantu78/WebReactivaFront/internal/live"
	"github.com/Gantu78/WebReactivaFront/internal/logbook"
	"github.com/Gantu78/WebReactivaFront/internal/model"
)

type liveSubscribedMsg struct {
	studentID int64
	sub       *live.Subscription
	err       error
}

type liveNotifyMsg struct {
	sub  *live.Subscription
	note live.Notification
}

type liveClosedMsg struct {
	sub *live.Subscription
	err error
}

// liveState tracks the one subscription the grade manager may hold.
type liveState struct {
	sub        *live.Subscription
	pending    int64
	hasPending bool
	err        error
}

// syncLive closes the subscription when the student changes and opens one
// for the selected student when none is open or pending. A subscription
// that failed is only retried here, on a selection change.
func (v *gradesView) syncLive(prev, next model.Selection) tea.Cmd {
	if !prev.SameStudent(next) {
		v.closeLive("student changed")
	}
	studentID, ok := next.Student()
	if !ok || v.app.subscriber == nil || v.app.send == nil {
		return nil
	}
	if v.live.sub != nil || (v.live.hasPending && v.live.pending == studentID) {
		return nil
	}
	v.live.pending = studentID
	v.live.hasPending = true
	v.live.err = nil
	subscriber := v.app.subscriber
	return func() tea.Msg {
		sub, err := subscriber.Subscribe(context.Background(), studentID)
		return liveSubscribedMsg{studentID: studentID, sub: sub, err: err}
	}
}

func (v *gradesView) handleSubscribed(m liveSubscribedMsg) tea.Cmd {
	if v.live.hasPending && m.studentID == v.live.pending {
		v.live.pending = 0
		v.live.hasPending = false
	}
	current, ok := v.selection.Student()
	if m.err != nil {
		if ok && current == m.studentID && v.live.sub == nil {
			v.live.err = m.err
			v.app.logWarn(logbook.ScopeLive, "Live updates unavailable for student #%d: %v", m.studentID, m.err)
		}
		return nil
	}
	if !ok || current != m.studentID || v.live.sub != nil {
		m.sub.Close()
		return nil
	}
	v.live.sub = m.sub
	v.live.err = nil
	v.app.logInfo(logbook.ScopeLive, "Live updates on for student #%d", m.studentID)
	go forwardLive(m.sub, v.app.send)
	return nil
}

// handleNotify refetches only the average, and only for the subscription
// that is still current.
func (v *gradesView) handleNotify(m liveNotifyMsg) tea.Cmd {
	if m.sub == nil || m.sub != v.live.sub {
		return nil
	}
	if !v.selection.Complete() {
		return nil
	}
	return v.fetchAverage(v.selection)
}

func (v *gradesView) handleLiveClosed(m liveClosedMsg) {
	if m.sub == nil || m.sub != v.live.sub {
		return
	}
	m.sub.Close()
	v.live.sub = nil
	v.live.err = m.err
	if v.live.err == nil {
		v.live.err = live.ErrStreamEnded
	}
	v.app.logWarn(logbook.ScopeLive, "Live updates stopped for student #%d: %v", m.sub.StudentID, v.live.err)
}

// closeLive releases the current subscription and forgets any pending one.
func (v *gradesView) closeLive(reason string) {
	v.live.pending = 0
	v.live.hasPending = false
	if v.live.sub == nil {
		return
	}
	v.app.logInfo(logbook.ScopeLive, "Live updates off for student #%d (%s)", v.live.sub.StudentID, reason)
	v.live.sub.Close()
	v.live.sub = nil
}

func (v *gradesView) renderLive() string {
	switch {
	case v.live.sub != nil:
		return liveOnStyle.Render("● live")
	case v.live.hasPending:
		return mutedStyle.Render("○ connecting")
	case v.live.err != nil && !errors.Is(v.live.err, context.Canceled):
		return warnStyle.Render("○ live off: " + v.live.err.Error())
	default:
		return liveOffStyle.Render("○ live off")
	}
}

// forwardLive hands every notification to the program, then reports the end
// of the stream.
func forwardLive(sub *live.Subscription, send func(tea.Msg)) {
	for note := range sub.Events {
		send(liveNotifyMsg{sub: sub, note: note})
	}
	send(liveClosedMsg{sub: sub, err: sub.Err()})
}
