// internal/tui/app.go
//
// This is the terminal client for the grades backend. It uses bubbletea,
// which follows The Elm Architecture:
//
// 1. Model: the App and its three managers (subjects, students, grades)
// 2. Update: backend results and key presses arrive as messages
// 3. View: the active manager plus the status footer
//
// Backend calls run inside tea.Cmds, so the UI stays responsive while a
// request is pending.

package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Gantu78/WebReactivaFront/internal/api"
	"github.com/Gantu78/WebReactivaFront/internal/config"
	"github.com/Gantu78/WebReactivaFront/internal/live"
	"github.com/Gantu78/WebReactivaFront/internal/logbook"
	"github.com/Gantu78/WebReactivaFront/internal/model"
)

// Backend is the slice of the HTTP contract the managers use. *api.Client
// satisfies it.
type Backend interface {
	ListSubjects(ctx context.Context) ([]model.Subject, error)
	CreateSubject(ctx context.Context, s model.Subject) (model.Subject, error)
	UpdateSubject(ctx context.Context, id int64, s model.Subject) (model.Subject, error)
	DeleteSubject(ctx context.Context, id int64) error

	ListStudents(ctx context.Context) ([]model.Student, error)
	CreateStudent(ctx context.Context, s model.Student) (model.Student, error)
	UpdateStudent(ctx context.Context, id int64, s model.Student) (model.Student, error)
	DeleteStudent(ctx context.Context, id int64) error

	ListGrades(ctx context.Context, subjectID, studentID int64) ([]model.Grade, error)
	CreateGrade(ctx context.Context, g model.Grade) (model.Grade, error)
	UpdateGrade(ctx context.Context, id int64, g model.Grade) (model.Grade, error)
	DeleteGrade(ctx context.Context, id int64) error
	Average(ctx context.Context, subjectID, studentID int64) (float64, error)
}

// pane identifies which manager has the keyboard.
type pane int

const (
	paneSubjects pane = iota
	paneStudents
	paneGrades
)

var paneTitles = []string{"Subjects", "Students", "Grades"}

type noticeKind int

const (
	noticeNone noticeKind = iota
	noticeSuccess
	noticeError
)

// notice is the inline message under the active pane. Successes expire,
// errors stay until dismissed or replaced.
type notice struct {
	kind noticeKind
	text string
	seq  int
}

type noticeExpiredMsg struct {
	seq int
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithBackend replaces the HTTP client built from the config.
func WithBackend(b Backend) AppOption {
	return func(a *App) {
		if b != nil {
			a.backend = b
		}
	}
}

// WithSubscriber replaces the live subscriber built from the config.
func WithSubscriber(s live.Subscriber) AppOption {
	return func(a *App) {
		if s != nil {
			a.subscriber = s
		}
	}
}

// WithWireLogger sends request and stream logs to l.
func WithWireLogger(l api.Logger) AppOption {
	return func(a *App) {
		a.wire = l
	}
}

// WithSuccessTTL overrides ui.success_ttl. Zero keeps success messages until
// they are replaced.
func WithSuccessTTL(d time.Duration) AppOption {
	return func(a *App) {
		a.successTTL = d
		a.ttlSet = true
	}
}

// App is the root coordinator. It owns the subject list, the student list and
// the grading selection; the managers change them only through its setters.
type App struct {
	config     *config.Config
	backend    Backend
	subscriber live.Subscriber
	logbook    *logbook.Logbook
	wire       api.Logger
	send       func(tea.Msg)

	subjects  []model.Subject
	students  []model.Student
	selection model.Selection

	subjectsView *subjectsView
	studentsView *studentsView
	gradesView   *gradesView

	active     pane
	notice     notice
	showLog    bool
	successTTL time.Duration
	ttlSet     bool
	quitting   bool

	width  int
	height int
}

// NewApp wires the managers to the backend described by cfg.
func NewApp(cfg *config.Config, opts ...AppOption) (*App, error) {
	if cfg == nil {
		return nil, errors.New("tui: config is required")
	}
	app := &App{config: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	if !app.ttlSet {
		app.successTTL = cfg.SuccessTTL()
	}
	lb, err := logbook.New(filepath.Join(cfg.LogsDir(), "journey.log"))
	if err == nil {
		app.logbook = lb
	}
	if app.backend == nil {
		client, err := api.New(cfg.BaseURL(),
			api.WithTimeout(cfg.RequestTimeout()),
			api.WithLogger(app.wire),
		)
		if err != nil {
			return nil, err
		}
		app.backend = client
		if app.subscriber == nil && cfg.LiveEnabled() {
			sub, err := live.New(cfg.LiveTransport(), client.StreamURL,
				live.WithHTTPClient(client.HTTPClient()),
				live.WithBuffer(cfg.LiveBuffer()),
				live.WithLogger(app.wire),
			)
			if err != nil {
				return nil, err
			}
			app.subscriber = sub
		}
	}
	app.subjectsView = newSubjectsView(app)
	app.studentsView = newStudentsView(app)
	app.gradesView = newGradesView(app)
	app.logInfo(logbook.ScopeSession, "Session opened · backend %s", cfg.BaseURL())
	return app, nil
}

// SetSender lets live notifications reach the program. Pass tea.Program.Send.
func (a *App) SetSender(send func(tea.Msg)) {
	a.send = send
}

// Shutdown releases the live subscription. Call it after the program exits.
func (a *App) Shutdown() {
	if a.gradesView != nil {
		a.gradesView.closeLive("shutdown")
	}
}

// publishSubjects is the subject manager's setter for the shared list.
func (a *App) publishSubjects(subjects []model.Subject) {
	a.subjects = append([]model.Subject(nil), subjects...)
	a.gradesView.setSubjects(a.subjects)
}

// publishStudents is the student manager's setter for the shared list.
func (a *App) publishStudents(students []model.Student) {
	a.students = append([]model.Student(nil), students...)
	a.gradesView.setStudents(a.students)
}

// requestGrading adopts the given ids (nil keeps the current half) and moves
// to the grades pane.
func (a *App) requestGrading(subjectID, studentID *int64) tea.Cmd {
	next := a.selection
	if subjectID != nil {
		next = next.WithSubject(*subjectID)
	}
	if studentID != nil {
		next = next.WithStudent(*studentID)
	}
	a.active = paneGrades
	return a.setSelection(next)
}

// setSelection replaces the selection and lets the grade manager react.
func (a *App) setSelection(next model.Selection) tea.Cmd {
	prev := a.selection
	if prev.Equal(next) {
		return nil
	}
	a.selection = next
	a.logInfo(logbook.ScopeGrades, "Selection changed to %s", next)
	return a.gradesView.selectionChanged(prev, next)
}

// Selection returns the active grading pair.
func (a *App) Selection() model.Selection {
	return a.selection
}

func (a *App) succeed(format string, args ...any) tea.Cmd {
	a.notice = notice{kind: noticeSuccess, text: fmt.Sprintf(format, args...), seq: a.notice.seq + 1}
	if a.successTTL <= 0 {
		return nil
	}
	seq := a.notice.seq
	return tea.Tick(a.successTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{seq: seq}
	})
}

func (a *App) fail(text string) {
	a.notice = notice{kind: noticeError, text: text, seq: a.notice.seq + 1}
}

func (a *App) dismiss() {
	a.notice = notice{seq: a.notice.seq + 1}
}

func (a *App) logInfo(scope logbook.Scope, format string, args ...any) {
	a.logbook.Record(logbook.LevelInfo, scope, format, args...)
}

func (a *App) logWarn(scope logbook.Scope, format string, args ...any) {
	a.logbook.Record(logbook.LevelWarn, scope, format, args...)
}

func (a *App) logError(scope logbook.Scope, format string, args ...any) {
	a.logbook.Record(logbook.LevelError, scope, format, args...)
}

// Init loads both lists.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.subjectsView.load(), a.studentsView.load())
}

// capturing reports whether the active pane is taking raw text input.
func (a *App) capturing() bool {
	switch a.active {
	case paneSubjects:
		return a.subjectsView.capturing()
	case paneStudents:
		return a.studentsView.capturing()
	default:
		return a.gradesView.capturing()
	}
}

// Update routes key presses to the active pane and backend results to the
// manager that issued them.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.gradesView.resize(msg.Width, msg.Height)
		a.subjectsView.resize(msg.Width, msg.Height)
		a.studentsView.resize(msg.Width, msg.Height)
		return a, nil

	case noticeExpiredMsg:
		if a.notice.kind == noticeSuccess && a.notice.seq == msg.seq {
			a.notice = notice{seq: a.notice.seq}
		}
		return a, nil

	case tea.KeyMsg:
		key := msg.String()
		if key == "ctrl+c" {
			return a, a.quit()
		}
		if !a.capturing() {
			switch key {
			case "q":
				return a, a.quit()
			case "1":
				a.active = paneSubjects
				return a, nil
			case "2":
				a.active = paneStudents
				return a, nil
			case "3":
				a.active = paneGrades
				return a, nil
			case "tab":
				a.active = (a.active + 1) % pane(len(paneTitles))
				return a, nil
			case "shift+tab":
				a.active = (a.active + pane(len(paneTitles)) - 1) % pane(len(paneTitles))
				return a, nil
			case "x":
				if a.notice.kind != noticeNone {
					a.dismiss()
					return a, nil
				}
			case "L":
				a.showLog = !a.showLog
				return a, nil
			}
		}
		switch a.active {
		case paneSubjects:
			return a, a.subjectsView.Update(msg)
		case paneStudents:
			return a, a.studentsView.Update(msg)
		default:
			return a, a.gradesView.Update(msg)
		}
	}

	var cmds []tea.Cmd
	for _, update := range []func(tea.Msg) tea.Cmd{a.subjectsView.Update, a.studentsView.Update, a.gradesView.Update} {
		if cmd := update(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return a, tea.Batch(cmds...)
}

func (a *App) quit() tea.Cmd {
	a.quitting = true
	a.Shutdown()
	a.logInfo(logbook.ScopeSession, "Session closed")
	return tea.Quit
}

// View renders the tab bar, the active pane, the notice and the footer.
func (a *App) View() string {
	if a.quitting {
		return ""
	}
	width := a.width
	if width <= 0 {
		width = 100
	}
	var content string
	switch a.active {
	case paneSubjects:
		content = a.subjectsView.View()
	case paneStudents:
		content = a.studentsView.View()
	default:
		content = a.gradesView.View()
	}
	body := activePanel.Width(max(40, width-4)).Render(content)
	sections := []string{a.renderTabs(), body}
	if line := a.renderNotice(); line != "" {
		sections = append(sections, line)
	}
	if a.showLog {
		if panel := a.renderLogPanel(); panel != "" {
			sections = append(sections, panel)
		}
	}
	sections = append(sections, a.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) renderTabs() string {
	tabs := []string{titleStyle.Render("▦ GRADEBOOK")}
	for i, title := range paneTitles {
		label := fmt.Sprintf("%d %s", i+1, title)
		if pane(i) == a.active {
			tabs = append(tabs, activeTab.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (a *App) renderNotice() string {
	switch a.notice.kind {
	case noticeSuccess:
		return successStyle.Render("✓ " + a.notice.text)
	case noticeError:
		return errorStyle.Render("✗ "+a.notice.text) + mutedStyle.Render("  (x to dismiss)")
	default:
		return ""
	}
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	entries, summary := a.logbook.Recent(8)
	if len(entries) == 0 {
		return ""
	}
	head := headingStyle.Render(fmt.Sprintf("LOG · %s · %d entries", filepath.Base(a.logbook.Path()), summary.Total))
	if summary.Problems > 0 {
		head += " " + warnStyle.Render(fmt.Sprintf("%d problems", summary.Problems))
	}
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		switch entry.Level {
		case logbook.LevelError:
			lines = append(lines, errorStyle.Render(entry.String()))
		case logbook.LevelWarn:
			lines = append(lines, warnStyle.Render(entry.String()))
		default:
			lines = append(lines, hintStyle.Render(entry.String()))
		}
	}
	return panelStyle.Render(head + "\n" + strings.Join(lines, "\n"))
}

func (a *App) renderFooter() string {
	parts := []string{"1/2/3 or tab=switch pane", "L=log", "q=quit"}
	if a.notice.kind == noticeError {
		parts = append(parts, "x=dismiss")
	}
	return mutedStyle.Render(strings.Join(parts, "  ") + "  · " + a.config.BaseURL())
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
