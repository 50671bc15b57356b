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

type studentsLoadedMsg struct {
	students []model.Student
	err      error
}

type studentSavedMsg struct {
	student model.Student
	updated bool
	err     error
}

type studentDeletedMsg struct {
	student model.Student
	err     error
}

// studentsView is the student manager. It mirrors subjectsView over students.
type studentsView struct {
	app      *App
	students []model.Student
	table    table.Model
	form     editForm
	confirm  *model.Student
	loading  bool
	saving   bool
}

func newStudentsView(app *App) *studentsView {
	return &studentsView{
		app: app,
		table: newTable([]table.Column{
			{Title: "ID", Width: 6},
			{Title: "Name", Width: 28},
			{Title: "Email", Width: 32},
		}),
		form: newEditForm("student",
			formField{label: "First name", placeholder: "Jane", limit: 80},
			formField{label: "Last name", placeholder: "Doe", limit: 80},
			formField{label: "Email", placeholder: "jane.doe@example.com", limit: 160},
		),
	}
}

func (v *studentsView) capturing() bool {
	return v.form.active || v.confirm != nil
}

func (v *studentsView) resize(width, height int) {
	v.table.SetHeight(max(5, height-15))
}

func (v *studentsView) load() tea.Cmd {
	v.loading = true
	backend := v.app.backend
	return func() tea.Msg {
		students, err := backend.ListStudents(context.Background())
		return studentsLoadedMsg{students: students, err: err}
	}
}

func (v *studentsView) selected() (model.Student, bool) {
	idx := v.table.Cursor()
	if idx < 0 || idx >= len(v.students) {
		return model.Student{}, false
	}
	return v.students[idx], true
}

func (v *studentsView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case studentsLoadedMsg:
		v.loading = false
		if m.err != nil {
			v.app.logError(logbook.ScopeStudents, "Loading students failed: %v", m.err)
			v.app.fail(feedback.ErrorMessage("Could not load students", m.err))
			m.students = nil
		}
		v.students = m.students
		setRows(&v.table, studentRows(v.students))
		v.app.publishStudents(v.students)
		return nil

	case studentSavedMsg:
		v.saving = false
		if m.err != nil {
			v.app.logError(logbook.ScopeStudents, "Saving student failed: %v", m.err)
			v.app.fail(feedback.StudentErrorMessage(m.err))
			return nil
		}
		v.form.close()
		verb := "created"
		if m.updated {
			verb = "updated"
		}
		v.app.logInfo(logbook.ScopeStudents, "Student %s %s (#%d)", m.student.FullName(), verb, model.IDOf(m.student.ID))
		return tea.Batch(v.app.succeed("Student %s %s", m.student.FullName(), verb), v.load())

	case studentDeletedMsg:
		if m.err != nil {
			v.app.logError(logbook.ScopeStudents, "Deleting student #%d failed: %v", model.IDOf(m.student.ID), m.err)
			v.app.fail(feedback.ErrorMessage("Could not delete the student", m.err))
			return nil
		}
		v.app.logInfo(logbook.ScopeStudents, "Student %s deleted", m.student.FullName())
		return tea.Batch(v.app.succeed("Student %s deleted", m.student.FullName()), v.load())

	case tea.KeyMsg:
		return v.handleKey(m)
	}
	return nil
}

func (v *studentsView) handleKey(msg tea.KeyMsg) tea.Cmd {
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
		if st, ok := v.selected(); ok {
			v.form.open(st.ID, st.FirstName, st.LastName, st.Email)
		}
		return nil
	case "d":
		if st, ok := v.selected(); ok {
			v.confirm = &st
		}
		return nil
	case "g":
		if st, ok := v.selected(); ok && st.ID != nil {
			id := *st.ID
			return v.app.requestGrading(nil, &id)
		}
		return nil
	case "r":
		return v.load()
	}
	var cmd tea.Cmd
	v.table, cmd = v.table.Update(msg)
	return cmd
}

func (v *studentsView) submit() tea.Cmd {
	st, err := model.ParseStudent(v.form.value(0), v.form.value(1), v.form.value(2))
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
			saved, err := backend.UpdateStudent(ctx, *editing, st)
			return studentSavedMsg{student: saved, updated: true, err: err}
		}
		saved, err := backend.CreateStudent(ctx, st)
		return studentSavedMsg{student: saved, err: err}
	}
}

func (v *studentsView) delete(st model.Student) tea.Cmd {
	if st.ID == nil {
		return nil
	}
	backend := v.app.backend
	id := *st.ID
	return func() tea.Msg {
		return studentDeletedMsg{student: st, err: backend.DeleteStudent(context.Background(), id)}
	}
}

func (v *studentsView) View() string {
	var b strings.Builder
	b.WriteString(headingStyle.Render(fmt.Sprintf("Students (%d)", len(v.students))))
	if v.loading {
		b.WriteString(mutedStyle.Render("  loading…"))
	}
	b.WriteString("\n")
	if len(v.students) == 0 && !v.loading {
		b.WriteString(mutedStyle.Render("No students yet. Press n to add one."))
	} else {
		b.WriteString(v.table.View())
	}
	b.WriteString("\n")
	switch {
	case v.confirm != nil:
		b.WriteString(confirmStyle.Render(fmt.Sprintf("Delete student %s and their grades? y/n", v.confirm.FullName())))
	case v.form.active:
		b.WriteString(v.form.view())
	default:
		b.WriteString(hintStyle.Render("n=new  e=edit  d=delete  g=grade this student  r=reload"))
	}
	return b.String()
}

func studentRows(students []model.Student) []table.Row {
	rows := make([]table.Row, 0, len(students))
	for _, s := range students {
		rows = append(rows, table.Row{
			strconv.FormatInt(model.IDOf(s.ID), 10),
			s.FullName(),
			s.Email,
		})
	}
	return rows
}
