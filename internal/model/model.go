// Package model holds the records exchanged with the grades backend and the
// selection value that drives the grade view.
package model

import (
	"fmt"
	"strings"
)

// Subject is a course with a credit count. ID is nil until the backend assigns one.
type Subject struct {
	ID          *int64 `json:"id,omitempty"`
	Name        string `json:"name"`
	CreditCount int    `json:"creditCount"`
}

// Student is a person enrolled in subjects. Email is unique per backend.
type Student struct {
	ID        *int64 `json:"id,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// FullName joins first and last name for headers and pickers.
func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Grade is one weighted score for a (subject, student) pair.
type Grade struct {
	ID            *int64  `json:"id,omitempty"`
	SubjectID     int64   `json:"subjectId"`
	StudentID     int64   `json:"studentId"`
	Note          string  `json:"note"`
	Score         float64 `json:"score"`
	WeightPercent float64 `json:"weightPercent"`
}

// IDOf dereferences an optional identifier, returning 0 when unset.
func IDOf(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

// Ptr returns a pointer to id; handy when building records in tests and forms.
func Ptr(id int64) *int64 {
	return &id
}

// FindSubject looks up a subject by identifier.
func FindSubject(subjects []Subject, id int64) (Subject, bool) {
	for _, s := range subjects {
		if s.ID != nil && *s.ID == id {
			return s, true
		}
	}
	return Subject{}, false
}

// FindStudent looks up a student by identifier.
func FindStudent(students []Student, id int64) (Student, bool) {
	for _, s := range students {
		if s.ID != nil && *s.ID == id {
			return s, true
		}
	}
	return Student{}, false
}

// FormatScore renders a score with one decimal ("4.5").
func FormatScore(score float64) string {
	return fmt.Sprintf("%.1f", score)
}

// FormatWeight renders a weight as a percentage without trailing zeros ("30%", "12.5%").
func FormatWeight(weight float64) string {
	text := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", weight), "0"), ".")
	return text + "%"
}

// FormatAverage renders the running average with two decimals.
func FormatAverage(avg float64) string {
	return fmt.Sprintf("%.2f", avg)
}
