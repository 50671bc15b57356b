package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Gantu78/WebReactivaFront/internal/feedback"
	"github.com/Gantu78/WebReactivaFront/internal/logbook"
	"github.com/Gantu78/WebReactivaFront/internal/model"
)

const msgSelectionRequired = "Select a subject and a student before saving a grade."

// Every backend result carries the selection it was issued for; results
// for any other selection are dropped.
type gradesLoadedMsg struct {
	selection model.Selection
	grades    []model.Grade
	average   float64
	stage     string
	err       error
}

type averageLoadedMsg struct {
	selection model.Selection
	average   float64
	err       error
}

type gradeSavedMsg struct {
	selection model.Selection
	grade     model.Grade
	updated   bool
	err       error
}

type gradeDeletedMsg struct {
	selection model.Selection
	grade     model.Grade
	err       error
}

type pickerKind int

const (
	pickSubject pickerKind = iota
	pickStudent
)

type pickerItem struct {
	id    int64
	none  bool
	title string
	desc  string
}

func (i pickerItem) Title() string       { return i.title }
func (i pickerItem) Description() string { return i.desc }
func (i pickerItem) FilterValue() string { return i.title }

// gradesView is the grade manager. It follows the coordinator's selection:
// with both halves set it shows the pair's grades and average and keeps a
// live subscription for the selected student.
type gradesView struct {
	app       *App
	selection model.Selection
	subjects  []model.Subject
	students  []model.Student

	grades  []model.Grade
	average float64
	loading bool
	saving  bool

	table      table.Model
	form       editForm
	picker     list.Model
	picking    pickerKind
	pickerOpen bool

	live liveState
}

func newGradesView(app *App) *gradesView {
	picker := list.New(nil, list.NewDefaultDelegate(), 40, 14)
	picker.SetShowStatusBar(false)
	picker.SetFilteringEnabled(false)
	picker.SetShowHelp(false)
	picker.KeyMap.Quit.SetEnabled(false)
	return &gradesView{
		app: app,
		table: newTable([]table.Column{
			{Title: "Note", Width: 30},
			{Title: "Score", Width: 7},
			{Title: "Weight", Width: 8},
		}),
		form: newEditForm("grade",
			formField{label: "Note", placeholder: "midterm", limit: 200},
			formField{label: "Score (0-5)", placeholder: "4.5", limit: 6},
			formField{label: "Weight %", placeholder: "30", limit: 6},
		),
		picker: picker,
	}
}

func (v *gradesView) capturing() bool {
	return v.form.active || v.pickerOpen
}

func (v *gradesView) resize(width, height int) {
	v.table.SetHeight(max(5, height-18))
	v.picker.SetSize(max(30, width/2), max(8, height-12))
}

func (v *gradesView) setSubjects(subjects []model.Subject) {
	v.subjects = subjects
	if v.pickerOpen && v.picking == pickSubject {
		v.openPicker(pickSubject)
	}
}

func (v *gradesView) setStudents(students []model.Student) {
	v.students = students
	if v.pickerOpen && v.picking == pickStudent {
		v.openPicker(pickStudent)
	}
}

// selectionChanged clears the displayed grades and average at once, then
// fetches the new pair and moves the live subscription to the new student.
func (v *gradesView) selectionChanged(prev, next model.Selection) tea.Cmd {
	v.selection = next
	v.grades = nil
	v.average = 0
	setRows(&v.table, nil)
	v.form.close()
	v.loading = false
	var cmds []tea.Cmd
	if next.Complete() {
		v.loading = true
		cmds = append(cmds, v.fetchGradesAndAverage(next))
	}
	if cmd := v.syncLive(prev, next); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// fetchGradesAndAverage lists the pair's grades, then asks for its average.
func (v *gradesView) fetchGradesAndAverage(sel model.Selection) tea.Cmd {
	backend := v.app.backend
	subjectID, _ := sel.Subject()
	studentID, _ := sel.Student()
	return func() tea.Msg {
		ctx := context.Background()
		grades, err := backend.ListGrades(ctx, subjectID, studentID)
		if err != nil {
			return gradesLoadedMsg{selection: sel, stage: "grades", err: err}
		}
		avg, err := backend.Average(ctx, subjectID, studentID)
		if err != nil {
			return gradesLoadedMsg{selection: sel, stage: "average", err: err}
		}
		return gradesLoadedMsg{selection: sel, grades: grades, average: avg}
	}
}

func (v *gradesView) fetchAverage(sel model.Selection) tea.Cmd {
	backend := v.app.backend
	subjectID, _ := sel.Subject()
	studentID, _ := sel.Student()
	return func() tea.Msg {
		avg, err := backend.Average(context.Background(), subjectID, studentID)
		return averageLoadedMsg{selection: sel, average: avg, err: err}
	}
}

func (v *gradesView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case gradesLoadedMsg:
		if !m.selection.Equal(v.selection) {
			return nil
		}
		v.loading = false
		if m.err != nil {
			v.grades = nil
			v.average = 0
			setRows(&v.table, nil)
			v.app.logError(logbook.ScopeGrades, "Loading %s for %s failed: %v", m.stage, m.selection, m.err)
			v.app.fail(feedback.ErrorMessage("Could not load "+m.stage, m.err))
			return nil
		}
		v.grades = m.grades
		v.average = m.average
		setRows(&v.table, gradeRows(v.grades))
		return nil

	case averageLoadedMsg:
		if !m.selection.Equal(v.selection) {
			return nil
		}
		if m.err != nil {
			v.average = 0
			v.app.logError(logbook.ScopeGrades, "Refreshing average for %s failed: %v", m.selection, m.err)
			v.app.fail(feedback.ErrorMessage("Could not refresh the average", m.err))
			return nil
		}
		v.average = m.average
		return nil

	case gradeSavedMsg:
		v.saving = false
		if !m.selection.Equal(v.selection) {
			v.app.logInfo(logbook.ScopeGrades, "Dropped grade save result for %s (selection is now %s)", m.selection, v.selection)
			return nil
		}
		if m.err != nil {
			v.app.logError(logbook.ScopeGrades, "Saving grade for %s failed: %v", m.selection, m.err)
			v.app.fail(feedback.GradeErrorMessage(m.err))
			return nil
		}
		v.form.close()
		verb := "added"
		if m.updated {
			verb = "updated"
		}
		v.app.logInfo(logbook.ScopeGrades, "Grade #%d %s for %s", model.IDOf(m.grade.ID), verb, m.selection)
		return tea.Batch(v.app.succeed("Grade %s", verb), v.reload())

	case gradeDeletedMsg:
		if !m.selection.Equal(v.selection) {
			v.app.logInfo(logbook.ScopeGrades, "Dropped grade delete result for %s (selection is now %s)", m.selection, v.selection)
			return nil
		}
		if m.err != nil {
			v.app.logError(logbook.ScopeGrades, "Deleting grade #%d failed: %v", model.IDOf(m.grade.ID), m.err)
			v.app.fail(feedback.ErrorMessage("Could not delete the grade", m.err))
			return nil
		}
		v.app.logInfo(logbook.ScopeGrades, "Grade #%d deleted for %s", model.IDOf(m.grade.ID), m.selection)
		return tea.Batch(v.app.succeed("Grade deleted"), v.reload())

	case liveSubscribedMsg:
		return v.handleSubscribed(m)

	case liveNotifyMsg:
		return v.handleNotify(m)

	case liveClosedMsg:
		v.handleLiveClosed(m)
		return nil

	case tea.KeyMsg:
		return v.handleKey(m)
	}
	return nil
}

// reload re-runs the grades-then-average fetch for the current pair.
func (v *gradesView) reload() tea.Cmd {
	if !v.selection.Complete() {
		return nil
	}
	v.loading = true
	return v.fetchGradesAndAverage(v.selection)
}

func (v *gradesView) selected() (model.Grade, bool) {
	idx := v.table.Cursor()
	if idx < 0 || idx >= len(v.grades) {
		return model.Grade{}, false
	}
	return v.grades[idx], true
}

func (v *gradesView) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if v.pickerOpen {
		switch key {
		case "esc":
			v.pickerOpen = false
			return nil
		case "enter":
			return v.choosePicked()
		}
		var cmd tea.Cmd
		v.picker, cmd = v.picker.Update(msg)
		return cmd
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
	case "s":
		v.openPicker(pickSubject)
		return nil
	case "t":
		v.openPicker(pickStudent)
		return nil
	case "c":
		return v.app.setSelection(model.Selection{})
	case "n":
		v.form.open(nil)
		return nil
	case "e", "enter":
		if g, ok := v.selected(); ok {
			v.edit(g)
		}
		return nil
	case "d":
		if g, ok := v.selected(); ok {
			return v.delete(g)
		}
		return nil
	case "r":
		return v.reload()
	}
	var cmd tea.Cmd
	v.table, cmd = v.table.Update(msg)
	return cmd
}

// edit loads a grade into the form; saving it becomes an update.
func (v *gradesView) edit(g model.Grade) {
	v.form.open(g.ID, g.Note, model.FormatScore(g.Score), trimPercent(model.FormatWeight(g.WeightPercent)))
}

// submit rejects a save without a full selection before any request is made.
func (v *gradesView) submit() tea.Cmd {
	subjectID, hasSubject := v.selection.Subject()
	studentID, hasStudent := v.selection.Student()
	if !hasSubject || !hasStudent {
		v.app.fail(msgSelectionRequired)
		return nil
	}
	grade, err := model.ParseGrade(v.form.value(0), v.form.value(1), v.form.value(2))
	if err != nil {
		v.app.fail(err.Error())
		return nil
	}
	if v.saving {
		return nil
	}
	grade.SubjectID = subjectID
	grade.StudentID = studentID
	v.saving = true
	backend := v.app.backend
	sel := v.selection
	editing := v.form.editingID
	return func() tea.Msg {
		ctx := context.Background()
		if editing != nil {
			saved, err := backend.UpdateGrade(ctx, *editing, grade)
			return gradeSavedMsg{selection: sel, grade: saved, updated: true, err: err}
		}
		saved, err := backend.CreateGrade(ctx, grade)
		return gradeSavedMsg{selection: sel, grade: saved, err: err}
	}
}

func (v *gradesView) delete(g model.Grade) tea.Cmd {
	if g.ID == nil {
		return nil
	}
	backend := v.app.backend
	sel := v.selection
	id := *g.ID
	return func() tea.Msg {
		return gradeDeletedMsg{selection: sel, grade: g, err: backend.DeleteGrade(context.Background(), id)}
	}
}

func (v *gradesView) openPicker(kind pickerKind) {
	items := []list.Item{pickerItem{none: true, title: "(none)", desc: "clear this half of the selection"}}
	current := 0
	switch kind {
	case pickSubject:
		v.picker.Title = "Select a subject"
		selected, ok := v.selection.Subject()
		for _, s := range v.subjects {
			id := model.IDOf(s.ID)
			items = append(items, pickerItem{id: id, title: s.Name, desc: fmt.Sprintf("#%d · %d credits", id, s.CreditCount)})
			if ok && id == selected {
				current = len(items) - 1
			}
		}
	case pickStudent:
		v.picker.Title = "Select a student"
		selected, ok := v.selection.Student()
		for _, s := range v.students {
			id := model.IDOf(s.ID)
			items = append(items, pickerItem{id: id, title: s.FullName(), desc: fmt.Sprintf("#%d · %s", id, s.Email)})
			if ok && id == selected {
				current = len(items) - 1
			}
		}
	}
	v.picker.SetItems(items)
	v.picker.Select(current)
	v.picking = kind
	v.pickerOpen = true
}

func (v *gradesView) choosePicked() tea.Cmd {
	v.pickerOpen = false
	item, ok := v.picker.SelectedItem().(pickerItem)
	if !ok {
		return nil
	}
	next := v.selection
	switch v.picking {
	case pickSubject:
		if item.none {
			next = next.ClearSubject()
		} else {
			next = next.WithSubject(item.id)
		}
	case pickStudent:
		if item.none {
			next = next.ClearStudent()
		} else {
			next = next.WithStudent(item.id)
		}
	}
	return v.app.setSelection(next)
}

func (v *gradesView) View() string {
	if v.pickerOpen {
		return v.picker.View() + "\n" + hintStyle.Render("enter=choose  esc=back")
	}
	var b strings.Builder
	b.WriteString(headingStyle.Render("Grades"))
	b.WriteString("  ")
	b.WriteString(v.renderLive())
	b.WriteString("\n")
	b.WriteString(v.renderSelection())
	b.WriteString("\n\n")
	if v.selection.Complete() {
		switch {
		case v.loading && len(v.grades) == 0:
			b.WriteString(mutedStyle.Render("loading…"))
		case len(v.grades) == 0:
			b.WriteString(mutedStyle.Render("No grades recorded for this pair."))
		default:
			b.WriteString(v.table.View())
		}
		b.WriteString("\n")
	}
	b.WriteString(averageStyle.Render("Average: " + model.FormatAverage(v.average)))
	b.WriteString("\n")
	if v.form.active {
		b.WriteString(v.form.view())
	} else if v.selection.Complete() {
		b.WriteString(hintStyle.Render("s=subject  t=student  c=clear  n=new  e=edit  d=delete  r=reload"))
	} else {
		b.WriteString(hintStyle.Render("s=choose subject  t=choose student"))
	}
	return b.String()
}

func (v *gradesView) renderSelection() string {
	subject := mutedStyle.Render("-- subjects --")
	if id, ok := v.selection.Subject(); ok {
		if s, found := model.FindSubject(v.subjects, id); found {
			subject = s.Name
		} else {
			subject = fmt.Sprintf("subject #%d", id)
		}
	}
	student := mutedStyle.Render("-- students --")
	if id, ok := v.selection.Student(); ok {
		if s, found := model.FindStudent(v.students, id); found {
			student = s.FullName()
		} else {
			student = fmt.Sprintf("student #%d", id)
		}
	}
	return labelStyle.Render("Subject") + " " + subject + "\n" + labelStyle.Render("Student") + " " + student
}

func gradeRows(grades []model.Grade) []table.Row {
	rows := make([]table.Row, 0, len(grades))
	for _, g := range grades {
		note := g.Note
		if note == "" {
			note = "-"
		}
		rows = append(rows, table.Row{note, model.FormatScore(g.Score), model.FormatWeight(g.WeightPercent)})
	}
	return rows
}

func trimPercent(s string) string {
	return strings.TrimSuffix(s, "%")
}
