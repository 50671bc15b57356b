package model

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// FieldError describes one rejected form field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects field errors found before a record is submitted.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "invalid input"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Message)
	}
	return strings.Join(parts, "; ")
}

// Field returns the message recorded for a field, if any.
func (e *ValidationError) Field(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, f := range e.Fields {
		if f.Field == name {
			return f.Message, true
		}
	}
	return "", false
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Validator wraps a validator instance with English messages keyed by the
// `label` struct tag.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

var (
	defaultValidator     *Validator
	defaultValidatorOnce sync.Once
)

// DefaultValidator returns the shared validator used by the form parsers.
func DefaultValidator() *Validator {
	defaultValidatorOnce.Do(func() {
		defaultValidator = NewValidator()
	})
	return defaultValidator
}

// NewValidator builds a validator with English translations registered.
func NewValidator() *Validator {
	locale := en.New()
	uni := ut.New(locale, locale)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = en_translations.RegisterDefaultTranslations(validate, translator)
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if label := fld.Tag.Get("label"); label != "" {
			return label
		}
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: validate, translator: translator}
}

// Struct validates v and converts failures into a *ValidationError.
func (v *Validator) Struct(value any) error {
	err := v.validate.Struct(value)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.add(fe.Field(), fe.Translate(v.translator))
	}
	return out
}

type subjectInput struct {
	Name        string `label:"name" validate:"required"`
	CreditCount int    `label:"credit count" validate:"gt=0"`
}

type studentInput struct {
	FirstName string `label:"first name" validate:"required"`
	LastName  string `label:"last name" validate:"required"`
	Email     string `label:"email" validate:"required,email"`
}

type gradeInput struct {
	Note          string  `label:"note"`
	Score         float64 `label:"score" validate:"gte=0,lte=5"`
	WeightPercent float64 `label:"weight" validate:"gt=0,lte=100"`
}

// ParseSubject turns raw form text into a Subject. Non-numeric credit counts
// are rejected here so they never reach the backend.
func ParseSubject(name, creditCount string) (Subject, error) {
	verr := &ValidationError{}
	in := subjectInput{Name: strings.TrimSpace(name)}
	credits, err := strconv.Atoi(strings.TrimSpace(creditCount))
	if err != nil {
		verr.add("credit count", "credit count must be a whole number")
	} else {
		in.CreditCount = credits
	}
	if err := DefaultValidator().Struct(in); err != nil {
		mergeInto(verr, err)
	}
	if err := verr.orNil(); err != nil {
		return Subject{}, err
	}
	return Subject{Name: in.Name, CreditCount: in.CreditCount}, nil
}

// ParseStudent turns raw form text into a Student.
func ParseStudent(firstName, lastName, email string) (Student, error) {
	in := studentInput{
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Email:     strings.TrimSpace(email),
	}
	if err := DefaultValidator().Struct(in); err != nil {
		return Student{}, err
	}
	return Student{FirstName: in.FirstName, LastName: in.LastName, Email: in.Email}, nil
}

// ParseGrade turns raw form text into an untagged Grade. The caller adds the
// subject and student ids from the active selection.
func ParseGrade(note, score, weight string) (Grade, error) {
	verr := &ValidationError{}
	in := gradeInput{Note: strings.TrimSpace(note)}
	parsedScore, ok := parseNumber(score)
	if !ok {
		verr.add("score", "score must be a number")
	}
	parsedWeight, okWeight := parseNumber(weight)
	if !okWeight {
		verr.add("weight", "weight must be a number")
	}
	in.Score = parsedScore
	in.WeightPercent = parsedWeight
	if err := DefaultValidator().Struct(in); err != nil {
		mergeInto(verr, err)
	}
	if err := verr.orNil(); err != nil {
		return Grade{}, err
	}
	return Grade{Note: in.Note, Score: in.Score, WeightPercent: in.WeightPercent}, nil
}

func (e *ValidationError) hasField(name string) bool {
	_, ok := e.Field(name)
	return ok
}

// mergeInto copies validator findings into dst, keeping any parse error
// already recorded for the same field.
func mergeInto(dst *ValidationError, err error) {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		dst.add("", err.Error())
		return
	}
	for _, f := range ve.Fields {
		if dst.hasField(f.Field) {
			continue
		}
		dst.add(f.Field, f.Message)
	}
}

func parseNumber(raw string) (float64, bool) {
	text := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if text == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
