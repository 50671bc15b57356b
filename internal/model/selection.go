package model

import "fmt"

// Selection is the active (subject, student) pair. Either half may be unset.
// Values are immutable: every With/Clear call returns a new Selection.
type Selection struct {
	subjectID int64
	studentID int64
	hasSubj   bool
	hasStud   bool
}

// NewSelection builds a selection from optional identifiers.
func NewSelection(subjectID, studentID *int64) Selection {
	sel := Selection{}
	if subjectID != nil {
		sel = sel.WithSubject(*subjectID)
	}
	if studentID != nil {
		sel = sel.WithStudent(*studentID)
	}
	return sel
}

// WithSubject returns a copy with the subject half set.
func (s Selection) WithSubject(id int64) Selection {
	s.subjectID = id
	s.hasSubj = true
	return s
}

// WithStudent returns a copy with the student half set.
func (s Selection) WithStudent(id int64) Selection {
	s.studentID = id
	s.hasStud = true
	return s
}

// ClearSubject returns a copy with the subject half unset.
func (s Selection) ClearSubject() Selection {
	s.subjectID = 0
	s.hasSubj = false
	return s
}

// ClearStudent returns a copy with the student half unset.
func (s Selection) ClearStudent() Selection {
	s.studentID = 0
	s.hasStud = false
	return s
}

// Subject reports the selected subject id, if any.
func (s Selection) Subject() (int64, bool) {
	return s.subjectID, s.hasSubj
}

// Student reports the selected student id, if any.
func (s Selection) Student() (int64, bool) {
	return s.studentID, s.hasStud
}

// Complete is true when both halves are set.
func (s Selection) Complete() bool {
	return s.hasSubj && s.hasStud
}

// Empty is true when neither half is set.
func (s Selection) Empty() bool {
	return !s.hasSubj && !s.hasStud
}

// Equal compares two selections half by half.
func (s Selection) Equal(other Selection) bool {
	return s == other
}

// SameStudent reports whether both selections point at the same student (or both at none).
func (s Selection) SameStudent(other Selection) bool {
	return s.hasStud == other.hasStud && s.studentID == other.studentID
}

func (s Selection) String() string {
	subj, stud := "-", "-"
	if s.hasSubj {
		subj = fmt.Sprintf("%d", s.subjectID)
	}
	if s.hasStud {
		stud = fmt.Sprintf("%d", s.studentID)
	}
	return fmt.Sprintf("subject=%s student=%s", subj, stud)
}
