// Package stubserver is an in-memory grades backend that honours the HTTP
// contract the client consumes: subjects, students, grades, the per-pair
// average, and the per-student average stream (SSE or WebSocket on the same
// path). It backs the package tests and `gradebook-stub`.
package stubserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Gantu78/WebReactivaFront/internal/model"
)

// Logger records server activity. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

// Server wraps the echo application and its in-memory state.
type Server struct {
	app      *echo.Echo
	store    *store
	hub      *hub
	logger   Logger
	upgrader websocket.Upgrader
	validate *validator.Validate

	mu       sync.Mutex
	requests []string
	failures []injectedFailure
}

type injectedFailure struct {
	method  string
	prefix  string
	status  int
	message string
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRequestLog enables echo's access log middleware.
func WithRequestLog() Option {
	return func(s *Server) {
		s.app.Use(middleware.Logger())
	}
}

// New builds a server with an empty store.
func New(opts ...Option) *Server {
	s := &Server{
		app:    echo.New(),
		store:  newStore(),
		hub:    newHub(defaultStreamCapacity),
		logger: nopLogger{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		validate: validator.New(),
	}
	s.app.HideBanner = true
	s.app.HidePort = true
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(s.recordRequests)
	s.app.HTTPErrorHandler = s.handleError

	api := s.app.Group("/api")

	api.GET("/subjects", s.listSubjects)
	api.POST("/subjects", s.createSubject)
	api.PUT("/subjects/:id", s.updateSubject)
	api.DELETE("/subjects/:id", s.deleteSubject)

	api.GET("/students", s.listStudents)
	api.POST("/students", s.createStudent)
	api.PUT("/students/:id", s.updateStudent)
	api.DELETE("/students/:id", s.deleteStudent)

	api.GET("/grades/subject/:subjectId/student/:studentId", s.listGrades)
	api.GET("/grades/average/subject/:subjectId/student/:studentId", s.average)
	api.GET("/grades/stream/average/:studentId", s.streamAverage)
	api.POST("/grades", s.createGrade)
	api.PUT("/grades/:id", s.updateGrade)
	api.DELETE("/grades/:id", s.deleteGrade)
}

// ServeHTTP lets tests mount the server on httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Printf("stub: listening on %s", addr)
	if err := s.app.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown ends open streams and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.CloseStreams()
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	return s.app.Shutdown(ctx)
}

// CloseStreams ends every open average stream.
func (s *Server) CloseStreams() {
	s.hub.close()
}

// Publish pushes an average event for the pair to the student's open streams.
func (s *Server) Publish(subjectID, studentID int64) {
	s.hub.publish(averageEvent{
		StudentID: studentID,
		SubjectID: subjectID,
		Average:   s.store.average(subjectID, studentID),
	})
}

// Streams reports how many average streams are open for a student.
func (s *Server) Streams(studentID int64) int {
	return s.hub.count(studentID)
}

// FailNext makes the next request matching method and path prefix fail with
// the given status and message.
func (s *Server) FailNext(method, pathPrefix string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, injectedFailure{method: method, prefix: pathPrefix, status: status, message: message})
}

// Requests returns "METHOD /path" for every request served so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// CountRequests counts served requests matching method and path prefix.
func (s *Server) CountRequests(method, pathPrefix string) int {
	n := 0
	for _, line := range s.Requests() {
		m, path, _ := strings.Cut(line, " ")
		if m == method && strings.HasPrefix(path, pathPrefix) {
			n++
		}
	}
	return n
}

func (s *Server) recordRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		s.mu.Lock()
		s.requests = append(s.requests, req.Method+" "+req.URL.Path)
		var injected *injectedFailure
		for i, f := range s.failures {
			if f.method == req.Method && strings.HasPrefix(req.URL.Path, f.prefix) {
				failure := f
				injected = &failure
				s.failures = append(s.failures[:i], s.failures[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		if injected != nil {
			return echo.NewHTTPError(injected.status, injected.message)
		}
		return next(c)
	}
}

// handleError renders every failure as {"message": "..."}.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var httpErr *echo.HTTPError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &httpErr):
		code = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	case errors.As(err, &verrs):
		code = http.StatusBadRequest
		message = validationMessage(verrs)
	default:
		s.logger.Printf("stub: %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{"message": message})
}

func validationMessage(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fieldRule(fe))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func fieldRule(fe validator.FieldError) string {
	switch fe.Field() {
	case "Score":
		return "score must be between 0 and 5"
	case "WeightPercent":
		return "weightPercent must be between 1 and 100"
	case "CreditCount":
		return "creditCount must be a positive integer"
	case "Email":
		return "email must be a valid address"
	default:
		return strings.ToLower(fe.Field()) + " is " + fe.Tag()
	}
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

type subjectBody struct {
	Name        string `json:"name" validate:"required"`
	CreditCount int    `json:"creditCount" validate:"gt=0"`
}

type studentBody struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
}

type gradeBody struct {
	SubjectID     int64   `json:"subjectId" validate:"gt=0"`
	StudentID     int64   `json:"studentId" validate:"gt=0"`
	Note          string  `json:"note"`
	Score         float64 `json:"score" validate:"gte=0,lte=5"`
	WeightPercent float64 `json:"weightPercent" validate:"gt=0,lte=100"`
}

func (s *Server) bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	return s.validate.Struct(dst)
}

func (s *Server) listSubjects(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.listSubjects())
}

func (s *Server) createSubject(c echo.Context) error {
	return s.saveSubject(c, 0, http.StatusCreated)
}

func (s *Server) updateSubject(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	return s.saveSubject(c, id, http.StatusOK)
}

func (s *Server) saveSubject(c echo.Context, id int64, status int) error {
	var body subjectBody
	if err := s.bind(c, &body); err != nil {
		return err
	}
	saved, err := s.store.saveSubject(id, model.Subject{Name: strings.TrimSpace(body.Name), CreditCount: body.CreditCount})
	if err != nil {
		return err
	}
	return c.JSON(status, saved)
}

func (s *Server) deleteSubject(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	touched, err := s.store.deleteSubject(id)
	if err != nil {
		return err
	}
	for _, studentID := range touched {
		s.Publish(id, studentID)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listStudents(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.listStudents())
}

func (s *Server) createStudent(c echo.Context) error {
	return s.saveStudent(c, 0, http.StatusCreated)
}

func (s *Server) updateStudent(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	return s.saveStudent(c, id, http.StatusOK)
}

func (s *Server) saveStudent(c echo.Context, id int64, status int) error {
	var body studentBody
	if err := s.bind(c, &body); err != nil {
		return err
	}
	saved, err := s.store.saveStudent(id, model.Student{
		FirstName: strings.TrimSpace(body.FirstName),
		LastName:  strings.TrimSpace(body.LastName),
		Email:     strings.TrimSpace(body.Email),
	})
	if err != nil {
		return err
	}
	return c.JSON(status, saved)
}

func (s *Server) deleteStudent(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := s.store.deleteStudent(id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listGrades(c echo.Context) error {
	subjectID, err := pathID(c, "subjectId")
	if err != nil {
		return err
	}
	studentID, err := pathID(c, "studentId")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.store.listGrades(subjectID, studentID))
}

func (s *Server) average(c echo.Context) error {
	subjectID, err := pathID(c, "subjectId")
	if err != nil {
		return err
	}
	studentID, err := pathID(c, "studentId")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.store.average(subjectID, studentID))
}

func (s *Server) createGrade(c echo.Context) error {
	return s.saveGrade(c, 0, http.StatusCreated)
}

func (s *Server) updateGrade(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	return s.saveGrade(c, id, http.StatusOK)
}

func (s *Server) saveGrade(c echo.Context, id int64, status int) error {
	var body gradeBody
	if err := s.bind(c, &body); err != nil {
		return err
	}
	saved, previous, err := s.store.saveGrade(id, model.Grade{
		SubjectID:     body.SubjectID,
		StudentID:     body.StudentID,
		Note:          strings.TrimSpace(body.Note),
		Score:         body.Score,
		WeightPercent: body.WeightPercent,
	})
	if err != nil {
		return err
	}
	s.Publish(saved.SubjectID, saved.StudentID)
	if previous != nil && (previous.SubjectID != saved.SubjectID || previous.StudentID != saved.StudentID) {
		s.Publish(previous.SubjectID, previous.StudentID)
	}
	return c.JSON(status, saved)
}

func (s *Server) deleteGrade(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	deleted, err := s.store.deleteGrade(id)
	if err != nil {
		return err
	}
	s.Publish(deleted.SubjectID, deleted.StudentID)
	return c.NoContent(http.StatusNoContent)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
