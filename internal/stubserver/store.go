package stubserver

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/Gantu78/WebReactivaFront/internal/model"
)

const maxWeightSum = 100.0

// store keeps subjects, students and grades in memory with the rules a real
// backend enforces: unique names and emails, value ranges, and a per-pair
// weight budget of 100%.
type store struct {
	mu       sync.Mutex
	nextID   int64
	subjects map[int64]model.Subject
	students map[int64]model.Student
	grades   map[int64]model.Grade
}

func newStore() *store {
	return &store{
		subjects: map[int64]model.Subject{},
		students: map[int64]model.Student{},
		grades:   map[int64]model.Grade{},
	}
}

func (s *store) allocID() int64 {
	s.nextID++
	return s.nextID
}

func errNotFound(kind string, id int64) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("%s %d not found", kind, id))
}

func errBadRequest(format string, args ...any) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf(format, args...))
}

func (s *store) listSubjects() []model.Subject {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Subject, 0, len(s.subjects))
	for _, subj := range s.subjects {
		out = append(out, subj)
	}
	sort.Slice(out, func(i, j int) bool { return model.IDOf(out[i].ID) < model.IDOf(out[j].ID) })
	return out
}

func (s *store) saveSubject(id int64, subj model.Subject) (model.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != 0 {
		if _, ok := s.subjects[id]; !ok {
			return model.Subject{}, errNotFound("subject", id)
		}
	}
	for otherID, other := range s.subjects {
		if otherID != id && strings.EqualFold(other.Name, subj.Name) {
			return model.Subject{}, errBadRequest("subject name %q already exists (duplicate key)", subj.Name)
		}
	}
	if id == 0 {
		id = s.allocID()
	}
	subj.ID = model.Ptr(id)
	s.subjects[id] = subj
	return subj, nil
}

// deleteSubject removes the subject and every grade recorded against it,
// returning the students whose averages changed.
func (s *store) deleteSubject(id int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[id]; !ok {
		return nil, errNotFound("subject", id)
	}
	delete(s.subjects, id)
	var touched []int64
	for gid, g := range s.grades {
		if g.SubjectID == id {
			touched = append(touched, g.StudentID)
			delete(s.grades, gid)
		}
	}
	return touched, nil
}

func (s *store) listStudents() []model.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Student, 0, len(s.students))
	for _, st := range s.students {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return model.IDOf(out[i].ID) < model.IDOf(out[j].ID) })
	return out
}

func (s *store) saveStudent(id int64, st model.Student) (model.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != 0 {
		if _, ok := s.students[id]; !ok {
			return model.Student{}, errNotFound("student", id)
		}
	}
	for otherID, other := range s.students {
		if otherID != id && strings.EqualFold(other.Email, st.Email) {
			return model.Student{}, errBadRequest("email %q is already in use (duplicate key)", st.Email)
		}
	}
	if id == 0 {
		id = s.allocID()
	}
	st.ID = model.Ptr(id)
	s.students[id] = st
	return st, nil
}

func (s *store) deleteStudent(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[id]; !ok {
		return errNotFound("student", id)
	}
	delete(s.students, id)
	for gid, g := range s.grades {
		if g.StudentID == id {
			delete(s.grades, gid)
		}
	}
	return nil
}

func (s *store) listGrades(subjectID, studentID int64) []model.Grade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gradesForLocked(subjectID, studentID)
}

func (s *store) gradesForLocked(subjectID, studentID int64) []model.Grade {
	out := []model.Grade{}
	for _, g := range s.grades {
		if g.SubjectID == subjectID && g.StudentID == studentID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return model.IDOf(out[i].ID) < model.IDOf(out[j].ID) })
	return out
}

// saveGrade creates (id == 0) or replaces a grade and returns the replaced
// version, if any. The weight sum of the pair, excluding the grade being
// replaced, must stay within 100.
func (s *store) saveGrade(id int64, g model.Grade) (model.Grade, *model.Grade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var previous *model.Grade
	if id != 0 {
		existing, ok := s.grades[id]
		if !ok {
			return model.Grade{}, nil, errNotFound("grade", id)
		}
		previous = &existing
	}
	if _, ok := s.subjects[g.SubjectID]; !ok {
		return model.Grade{}, nil, errBadRequest("validation failed: subject %d does not exist", g.SubjectID)
	}
	if _, ok := s.students[g.StudentID]; !ok {
		return model.Grade{}, nil, errBadRequest("validation failed: student %d does not exist", g.StudentID)
	}
	sum := g.WeightPercent
	for gid, other := range s.grades {
		if gid != id && other.SubjectID == g.SubjectID && other.StudentID == g.StudentID {
			sum += other.WeightPercent
		}
	}
	if sum > maxWeightSum+1e-9 {
		return model.Grade{}, nil, errBadRequest("the sum of percentages exceeds 100%% for subject %d and student %d", g.SubjectID, g.StudentID)
	}
	if id == 0 {
		id = s.allocID()
	}
	g.ID = model.Ptr(id)
	s.grades[id] = g
	return g, previous, nil
}

func (s *store) deleteGrade(id int64) (model.Grade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grades[id]
	if !ok {
		return model.Grade{}, errNotFound("grade", id)
	}
	delete(s.grades, id)
	return g, nil
}

// average is the weighted sum of scores: Σ score × weight / 100.
func (s *store) average(subjectID, studentID int64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0.0
	for _, g := range s.gradesForLocked(subjectID, studentID) {
		total += g.Score * g.WeightPercent / 100
	}
	return total
}
