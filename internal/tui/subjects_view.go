package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Gantu78/WebReactivaFront/internal/feedback"
	"github.com/Gantu78/WebReactivaFront/internal/logbook"
	"github.com/Gantu78/WebReactivaFront/internal/model"
)

type subjectsLoadedMsg struct {
	subjects []model.Subject
	err      error
}

type subjectSavedMsg struct {
	subject model.Subject
	updated bool
	err     error
}

type subjectDeletedMsg struct {
	subject model.Subject
	err     error
}

// subjectsView is the subject manager: list, create/edit form, delete with
// confirmation, and "grade this subject".
type subjectsView struct {
	app      *App
	subjects []model.Subject
	table    table.Model
	form     editForm
	confirm  *model.Subject
	loading  bool
	saving   bool
}

func newSubjectsView(app *App) *subjectsView {
	return &subjectsView{
		app: app,
		table: newTable([]table.Column{
			{Title: "ID", Width: 6},
			{Title: "Name", Width: 32},
			{Title: "Credits", Width: 8},
		}),
		form: newEditForm("subject",
			formField{label: "Name", placeholder: "Math101", limit: 120},
			formField{label: "Credits", placeholder: "4", limit: 4},
		),
	}
}

func (v *subjectsView) capturing() bool {
	return v.form.active || v.confirm != nil
}

func (v *subjectsView) resize(width, height int) {
	v.table.SetHeight(max(5, height-14))
}

func (v *subjectsView) load() tea.Cmd {
	v.loading = true
	backend := v.app.backend
	return func() tea.Msg {
		subjects, err := backend.ListSubjects(context.Background())
		return subjectsLoadedMsg{subjects: subjects, err: err}
	}
}

func (v *subjectsView) selected() (model.Subject, bool) {
	idx := v.table.Cursor()
	if idx < 0 || idx >= len(v.subjects) {
		return model.Subject{}, false
	}
	return v.subjects[idx], true
}

func (v *subjectsView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case subjectsLoadedMsg:
		v.loading = false
		if m.err != nil {
			v.app.logError(logbook.ScopeSubjects, "Loading subjects failed: %v", m.err)
			v.app.fail(feedback.ErrorMessage("Could not load subjects", m.err))
			m.subjects = nil
		}
		v.subjects = m.subjects
		setRows(&v.table, subjectRows(v.subjects))
		v.app.publishSubjects(v.subjects)
		return nil

	case subjectSavedMsg:
		v.saving = false
		if m.err != nil {
			v.app.logError(logbook.ScopeSubjects, "Saving subject failed: %v", m.err)
			v.app.fail(feedback.SubjectErrorMessage(m.err))
			return nil
		}
		v.form.close()
		verb := "created"
		if m.updated {
			verb = "updated"
		}
		v.app.logInfo(logbook.ScopeSubjects, "Subject %q %s (#%d)", m.subject.Name, verb, model.IDOf(m.subject.ID))
		return tea.Batch(v.app.succeed("Subject %q %s", m.subject.Name, verb), v.load())

	case subjectDeletedMsg:
		if m.err != nil {
			v.app.logError(logbook.ScopeSubjects, "Deleting subject #%d failed: %v", model.IDOf(m.subject.ID), m.err)
			v.app.fail(feedback.ErrorMessage("Could not delete the subject", m.err))
			return nil
		}
		v.app.logInfo(logbook.ScopeSubjects, "Subject %q deleted", m.subject.Name)
		return tea.Batch(v.app.succeed("Subject %q deleted", m.subject.Name), v.load())

	case tea.KeyMsg:
		return v.handleKey(m)
	}
	return nil
}

func (v *subjectsView) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if v.confirm != nil {
		target := *v.confirm
		switch key {
		case "y", "Y":
			v.confirm = nil
			return v.delete(target)
		case "n", "N", "esc":
			v.confirm = nil
		}
		return nil
	}
	if v.form.active {
		switch key {
		case "esc":
			v.form.close()
			return nil
		case "enter":
			return v.submit()
		}
		return v.form.update(msg)
	}
	switch key {
	case "n":
		v.form.open(nil)
		return nil
	case "e", "enter":
		if subj, ok := v.selected(); ok {
			v.form.open(subj.ID, subj.Name, strconv.Itoa(subj.CreditCount))
		}
		return nil
	case "d":
		if subj, ok := v.selected(); ok {
			v.confirm = &subj
		}
		return nil
	case "g":
		if subj, ok := v.selected(); ok && subj.ID != nil {
			id := *subj.ID
			return v.app.requestGrading(&id, nil)
		}
		return nil
	case "r":
		return v.load()
	}
	var cmd tea.Cmd
	v.table, cmd = v.table.Update(msg)
	return cmd
}

// submit validates the form locally and sends a create or update.
func (v *subjectsView) submit() tea.Cmd {
	subj, err := model.ParseSubject(v.form.value(0), v.form.value(1))
	if err != nil {
		v.app.fail(err.Error())
		return nil
	}
	if v.saving {
		return nil
	}
	v.saving = true
	backend := v.app.backend
	editing := v.form.editingID
	return func() tea.Msg {
		ctx := context.Background()
		if editing != nil {
			saved, err := backend.UpdateSubject(ctx, *editing, subj)
			return subjectSavedMsg{subject: saved, updated: true, err: err}
		}
		saved, err := backend.CreateSubject(ctx, subj)
		return subjectSavedMsg{subject: saved, err: err}
	}
}

func (v *subjectsView) delete(subj model.Subject) tea.Cmd {
	if subj.ID == nil {
		return nil
	}
	backend := v.app.backend
	id := *subj.ID
	return func() tea.Msg {
		return subjectDeletedMsg{subject: subj, err: backend.DeleteSubject(context.Background(), id)}
	}
}

func (v *subjectsView) View() string {
	var b strings.Builder
	b.WriteString(headingStyle.Render(fmt.Sprintf("Subjects (%d)", len(v.subjects))))
	if v.loading {
		b.WriteString(mutedStyle.Render("  loading…"))
	}
	b.WriteString("\n")
	if len(v.subjects) == 0 && !v.loading {
		b.WriteString(mutedStyle.Render("No subjects yet. Press n to add one."))
	} else {
		b.WriteString(v.table.View())
	}
	b.WriteString("\n")
	switch {
	case v.confirm != nil:
		b.WriteString(confirmStyle.Render(fmt.Sprintf("Delete subject %q and its grades? y/n", v.confirm.Name)))
	case v.form.active:
		b.WriteString(v.form.view())
	default:
		b.WriteString(hintStyle.Render("n=new  e=edit  d=delete  g=grade this subject  r=reload"))
	}
	return b.String()
}

func subjectRows(subjects []model.Subject) []table.Row {
	rows := make([]table.Row, 0, len(subjects))
	for _, s := range subjects {
		rows = append(rows, table.Row{
			strconv.FormatInt(model.IDOf(s.ID), 10),
			s.Name,
			strconv.Itoa(s.CreditCount),
		})
	}
	return rows
}

// newTable builds a focused table with the shared styles.
func newTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(headingStyle.GetForeground())
	styles.Selected = selectedStyle
	t.SetStyles(styles)
	return t
}

// setRows replaces the rows and keeps the cursor on an existing row.
func setRows(t *table.Model, rows []table.Row) {
	t.SetRows(rows)
	if len(rows) > 0 && t.Cursor() >= len(rows) {
		t.SetCursor(len(rows) - 1)
	}
	if len(rows) > 0 && t.Cursor() < 0 {
		t.SetCursor(0)
	}
}
