package stubserver

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gantu78/WebReactivaFront/internal/model"
)

func newRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload["message"]
}

func TestSubjectsCRUD(t *testing.T) {
	s := New()

	rec := serve(s, newRequest(http.MethodPost, "/api/subjects", map[string]any{"name": "Math101", "creditCount": 4}))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created model.Subject
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotNil(t, created.ID)

	rec = serve(s, newRequest(http.MethodPost, "/api/subjects", map[string]any{"name": "math101", "creditCount": 2}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "duplicate")

	rec = serve(s, newRequest(http.MethodPost, "/api/subjects", map[string]any{"name": "Physics", "creditCount": 0}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "creditCount")

	rec = serve(s, newRequest(http.MethodPut, "/api/subjects/"+itoa(*created.ID), map[string]any{"name": "Math 101", "creditCount": 5}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, newRequest(http.MethodGet, "/api/subjects", nil))
	var listed []model.Subject
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "Math 101", listed[0].Name)

	rec = serve(s, newRequest(http.MethodDelete, "/api/subjects/"+itoa(*created.ID), nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(s, newRequest(http.MethodDelete, "/api/subjects/"+itoa(*created.ID), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStudentEmailMustBeUnique(t *testing.T) {
	s := New()
	s.SeedStudent(t, "Jane", "Doe", "jane@example.com")
	rec := serve(s, newRequest(http.MethodPost, "/api/students", map[string]any{
		"firstName": "Janet", "lastName": "Doe", "email": "JANE@example.com",
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "duplicate key")
}

func TestGradeWeightBudgetAndAverage(t *testing.T) {
	s := New()
	subj := s.SeedSubject(t, "Math101", 4)
	st := s.SeedStudent(t, "Jane", "Doe", "jane@example.com")
	pair := "/subject/" + itoa(*subj.ID) + "/student/" + itoa(*st.ID)

	rec := serve(s, newRequest(http.MethodPost, "/api/grades", model.Grade{SubjectID: *subj.ID, StudentID: *st.ID, Note: "midterm", Score: 4.5, WeightPercent: 30}))
	require.Equal(t, http.StatusCreated, rec.Code)
	var first model.Grade
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	rec = serve(s, newRequest(http.MethodPost, "/api/grades", model.Grade{SubjectID: *subj.ID, StudentID: *st.ID, Score: 3, WeightPercent: 71}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "exceeds 100%")

	rec = serve(s, newRequest(http.MethodPost, "/api/grades", model.Grade{SubjectID: *subj.ID, StudentID: *st.ID, Score: 7, WeightPercent: 10}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "score must be between 0 and 5")

	// Replacing a grade does not count its old weight against the budget.
	rec = serve(s, newRequest(http.MethodPut, "/api/grades/"+itoa(*first.ID), model.Grade{SubjectID: *subj.ID, StudentID: *st.ID, Score: 4, WeightPercent: 100}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, newRequest(http.MethodGet, "/api/grades/average"+pair, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var avg float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &avg))
	assert.InDelta(t, 4.0, avg, 1e-9)

	rec = serve(s, newRequest(http.MethodPut, "/api/grades/999", model.Grade{SubjectID: *subj.ID, StudentID: *st.ID, Score: 4, WeightPercent: 10}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "not found")

	rec = serve(s, newRequest(http.MethodDelete, "/api/grades/"+itoa(*first.ID), nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(s, newRequest(http.MethodGet, "/api/grades"+pair, nil))
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestFailNextInjectsOneFailure(t *testing.T) {
	s := New()
	s.FailNext(http.MethodGet, "/api/subjects", http.StatusInternalServerError, "database unavailable")
	rec := serve(s, newRequest(http.MethodGet, "/api/subjects", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "database unavailable", errorMessage(t, rec))
	rec = serve(s, newRequest(http.MethodGet, "/api/subjects", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, s.CountRequests(http.MethodGet, "/api/subjects"))
}

func TestSSEStreamDeliversGradeChanges(t *testing.T) {
	s, ts := NewTestServer(t)
	subj := s.SeedSubject(t, "Math101", 4)
	st := s.SeedStudent(t, "Jane", "Doe", "jane@example.com")

	resp, err := http.Get(ts.URL + "/api/grades/stream/average/" + itoa(*st.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Eventually(t, func() bool { return s.Streams(*st.ID) == 1 }, time.Second, 10*time.Millisecond)

	s.SeedGrade(t, model.Grade{SubjectID: *subj.ID, StudentID: *st.ID, Score: 5, WeightPercent: 50})
	s.Publish(*subj.ID, *st.ID)

	reader := bufio.NewReader(resp.Body)
	var data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data:") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	var evt averageEvent
	require.NoError(t, json.Unmarshal([]byte(data), &evt))
	assert.Equal(t, *st.ID, evt.StudentID)
	assert.InDelta(t, 2.5, evt.Average, 1e-9)
}

func TestWebSocketStreamDeliversGradeChanges(t *testing.T) {
	s, ts := NewTestServer(t)
	subj := s.SeedSubject(t, "Math101", 4)
	st := s.SeedStudent(t, "Jane", "Doe", "jane@example.com")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/grades/stream/average/" + itoa(*st.ID)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.Streams(*st.ID) == 1 }, time.Second, 10*time.Millisecond)

	rec := serve(s, newRequest(http.MethodPost, "/api/grades", model.Grade{SubjectID: *subj.ID, StudentID: *st.ID, Score: 4, WeightPercent: 25}))
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt averageEvent
	require.NoError(t, conn.ReadJSON(&evt))
	assert.InDelta(t, 1.0, evt.Average, 1e-9)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return s.Streams(*st.ID) == 0 }, time.Second, 10*time.Millisecond)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
