package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gantu78/WebReactivaFront/internal/model"
)

const (
	subjectsPath = "/api/subjects"
	studentsPath = "/api/students"
	gradesPath   = "/api/grades"
)

// ListSubjects fetches every subject.
func (c *Client) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	var out []model.Subject
	if err := c.do(ctx, http.MethodGet, subjectsPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSubject submits a new subject; the id on the input is ignored.
func (c *Client) CreateSubject(ctx context.Context, s model.Subject) (model.Subject, error) {
	s.ID = nil
	var out model.Subject
	err := c.do(ctx, http.MethodPost, subjectsPath, s, &out)
	return out, err
}

// UpdateSubject replaces the subject with the given id.
func (c *Client) UpdateSubject(ctx context.Context, id int64, s model.Subject) (model.Subject, error) {
	s.ID = &id
	var out model.Subject
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("%s/%d", subjectsPath, id), s, &out)
	return out, err
}

// DeleteSubject removes a subject.
func (c *Client) DeleteSubject(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", subjectsPath, id), nil, nil)
}

// ListStudents fetches every student.
func (c *Client) ListStudents(ctx context.Context) ([]model.Student, error) {
	var out []model.Student
	if err := c.do(ctx, http.MethodGet, studentsPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateStudent submits a new student.
func (c *Client) CreateStudent(ctx context.Context, s model.Student) (model.Student, error) {
	s.ID = nil
	var out model.Student
	err := c.do(ctx, http.MethodPost, studentsPath, s, &out)
	return out, err
}

// UpdateStudent replaces the student with the given id.
func (c *Client) UpdateStudent(ctx context.Context, id int64, s model.Student) (model.Student, error) {
	s.ID = &id
	var out model.Student
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("%s/%d", studentsPath, id), s, &out)
	return out, err
}

// DeleteStudent removes a student.
func (c *Client) DeleteStudent(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", studentsPath, id), nil, nil)
}

// ListGrades fetches the grades of one (subject, student) pair.
func (c *Client) ListGrades(ctx context.Context, subjectID, studentID int64) ([]model.Grade, error) {
	var out []model.Grade
	path := fmt.Sprintf("%s/subject/%d/student/%d", gradesPath, subjectID, studentID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateGrade submits a new grade.
func (c *Client) CreateGrade(ctx context.Context, g model.Grade) (model.Grade, error) {
	g.ID = nil
	var out model.Grade
	err := c.do(ctx, http.MethodPost, gradesPath, g, &out)
	return out, err
}

// UpdateGrade replaces the grade with the given id.
func (c *Client) UpdateGrade(ctx context.Context, id int64, g model.Grade) (model.Grade, error) {
	g.ID = &id
	var out model.Grade
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("%s/%d", gradesPath, id), g, &out)
	return out, err
}

// DeleteGrade removes a grade.
func (c *Client) DeleteGrade(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", gradesPath, id), nil, nil)
}

// Average fetches the backend-computed running average of a pair.
func (c *Client) Average(ctx context.Context, subjectID, studentID int64) (float64, error) {
	var out float64
	path := fmt.Sprintf("%s/average/subject/%d/student/%d", gradesPath, subjectID, studentID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, err
	}
	return out, nil
}
