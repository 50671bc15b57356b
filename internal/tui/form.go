package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// formField describes one text input of an edit form.
type formField struct {
	label       string
	placeholder string
	limit       int
}

// editForm is the create/edit form shared by the three managers. A non-nil
// editingID turns submission into an update.
type editForm struct {
	noun      string
	labels    []string
	inputs    []textinput.Model
	focus     int
	active    bool
	editingID *int64
}

func newEditForm(noun string, fields ...formField) editForm {
	f := editForm{noun: noun}
	for _, field := range fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = field.placeholder
		if field.limit > 0 {
			ti.CharLimit = field.limit
		}
		ti.Cursor.SetMode(cursor.CursorStatic)
		f.labels = append(f.labels, field.label)
		f.inputs = append(f.inputs, ti)
	}
	return f
}

// open shows the form. values fill the inputs in order; id marks an edit.
func (f *editForm) open(id *int64, values ...string) {
	f.active = true
	f.editingID = nil
	if id != nil {
		copied := *id
		f.editingID = &copied
	}
	for i := range f.inputs {
		f.inputs[i].Reset()
		if i < len(values) {
			f.inputs[i].SetValue(values[i])
		}
	}
	f.setFocus(0)
}

// close hides the form and forgets its contents.
func (f *editForm) close() {
	f.active = false
	f.editingID = nil
	for i := range f.inputs {
		f.inputs[i].Reset()
		f.inputs[i].Blur()
	}
	f.focus = 0
}

func (f *editForm) editing() bool {
	return f.editingID != nil
}

func (f *editForm) value(i int) string {
	if i < 0 || i >= len(f.inputs) {
		return ""
	}
	return f.inputs[i].Value()
}

func (f *editForm) setFocus(i int) {
	if len(f.inputs) == 0 {
		return
	}
	f.focus = (i + len(f.inputs)) % len(f.inputs)
	for idx := range f.inputs {
		if idx == f.focus {
			f.inputs[idx].Focus()
		} else {
			f.inputs[idx].Blur()
		}
	}
}

// update routes navigation keys and passes the rest to the focused input.
func (f *editForm) update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			f.setFocus(f.focus + 1)
			return nil
		case "shift+tab", "up":
			f.setFocus(f.focus - 1)
			return nil
		}
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *editForm) title() string {
	if f.editing() {
		return fmt.Sprintf("Edit %s #%d", f.noun, *f.editingID)
	}
	return "New " + f.noun
}

func (f *editForm) view() string {
	lines := []string{headingStyle.Render(f.title())}
	for i, in := range f.inputs {
		label := labelStyle.Render(f.labels[i])
		if i == f.focus {
			label = focusedLabel.Render(f.labels[i])
		}
		lines = append(lines, label+" "+in.View())
	}
	lines = append(lines, hintStyle.Render("tab=next field  enter=save  esc=cancel"))
	return strings.Join(lines, "\n")
}
