package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gantu78/WebReactivaFront/internal/model"
	"github.com/Gantu78/WebReactivaFront/internal/stubserver"
)

func newTestClient(t *testing.T, opts ...Option) (*Client, *stubserver.Server) {
	t.Helper()
	stub, ts := stubserver.NewTestServer(t)
	client, err := New(ts.URL+"/", opts...)
	require.NoError(t, err)
	return client, stub
}

func TestNewRejectsRelativeBaseURL(t *testing.T) {
	_, err := New("localhost:8080")
	require.Error(t, err)
	_, err = New("/api")
	require.Error(t, err)
}

func TestEndpointJoinsPrefix(t *testing.T) {
	client, err := New("http://example.test/backend/")
	require.NoError(t, err)
	assert.Equal(t, "http://example.test/backend", client.BaseURL())
	assert.Equal(t, "http://example.test/backend/api/subjects", client.Endpoint("/api/subjects"))
	assert.Equal(t, "http://example.test/backend/api/grades/stream/average/7", client.StreamURL(7))
}

func TestSubjectLifecycle(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	created, err := client.CreateSubject(ctx, model.Subject{ID: model.Ptr(99), Name: "Math101", CreditCount: 4})
	require.NoError(t, err)
	require.NotNil(t, created.ID)
	assert.NotEqual(t, int64(99), *created.ID)

	updated, err := client.UpdateSubject(ctx, *created.ID, model.Subject{Name: "Math 101", CreditCount: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.CreditCount)

	subjects, err := client.ListSubjects(ctx)
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, "Math 101", subjects[0].Name)

	require.NoError(t, client.DeleteSubject(ctx, *created.ID))
	err = client.DeleteSubject(ctx, *created.ID)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestStudentDuplicateEmailIsValidationError(t *testing.T) {
	client, stub := newTestClient(t)
	stub.SeedStudent(t, "Jane", "Doe", "jane@example.com")

	_, err := client.CreateStudent(context.Background(), model.Student{FirstName: "J", LastName: "D", Email: "jane@example.com"})
	require.Error(t, err)
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindValidation, apiErr.Kind)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, Message(err), "already in use")
}

func TestGradesAndAverage(t *testing.T) {
	client, stub := newTestClient(t)
	ctx := context.Background()
	subj := stub.SeedSubject(t, "Math101", 4)
	st := stub.SeedStudent(t, "Jane", "Doe", "jane@example.com")

	grade, err := client.CreateGrade(ctx, model.Grade{SubjectID: *subj.ID, StudentID: *st.ID, Note: "midterm", Score: 4.5, WeightPercent: 30})
	require.NoError(t, err)
	require.NotNil(t, grade.ID)

	grades, err := client.ListGrades(ctx, *subj.ID, *st.ID)
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, 4.5, grades[0].Score)

	avg, err := client.Average(ctx, *subj.ID, *st.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1.35, avg, 1e-9)

	_, err = client.CreateGrade(ctx, model.Grade{SubjectID: *subj.ID, StudentID: *st.ID, Score: 3, WeightPercent: 80})
	require.Error(t, err)
	assert.Contains(t, Message(err), "exceeds 100%")

	grade.Score = 3
	_, err = client.UpdateGrade(ctx, *grade.ID, grade)
	require.NoError(t, err)

	require.NoError(t, client.DeleteGrade(ctx, *grade.ID))
	grades, err = client.ListGrades(ctx, *subj.ID, *st.ID)
	require.NoError(t, err)
	assert.Empty(t, grades)
}

func TestServerErrorKind(t *testing.T) {
	client, stub := newTestClient(t)
	stub.FailNext(http.MethodGet, "/api/students", http.StatusServiceUnavailable, "maintenance window")

	_, err := client.ListStudents(context.Background())
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindServer, apiErr.Kind)
	assert.Equal(t, "maintenance window", apiErr.Message)
	assert.Equal(t, "server", apiErr.Kind.String())
}

func TestTransportErrorKind(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	client, err := New(url)
	require.NoError(t, err)
	_, err = client.ListSubjects(context.Background())
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindTransport, apiErr.Kind)
	assert.Zero(t, apiErr.Status)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestStatusErrorMessageFallbacks(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
		code string
	}{
		{name: "message", body: `{"message":"name is required"}`, want: "name is required"},
		{name: "error field", body: `{"error":"Bad Request"}`, want: "Bad Request"},
		{name: "code", body: `{"message":"too much","code":"PERCENTAGE_EXCEEDED"}`, want: "too much", code: "PERCENTAGE_EXCEEDED"},
		{name: "plain text", body: "subject missing", want: "subject missing"},
		{name: "html page", body: "<html>oops</html>", want: "Conflict"},
		{name: "empty", body: "", want: "Conflict"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := newStatusError(http.MethodPost, "/api/grades", "req-1", http.StatusConflict, []byte(tc.body))
			assert.Equal(t, tc.want, err.Message)
			assert.Equal(t, tc.code, err.Code)
			assert.Equal(t, KindValidation, err.Kind)
		})
	}
}

func TestRequestIDHeaderIsSent(t *testing.T) {
	var seen []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get(RequestIDHeader))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	n := 0
	client, err := New(ts.URL, WithRequestIDs(func() string {
		n++
		return "req-" + strings.Repeat("x", n)
	}))
	require.NoError(t, err)
	_, err = client.ListSubjects(context.Background())
	require.NoError(t, err)
	_, err = client.ListStudents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"req-x", "req-xx"}, seen)
}

func TestDefaultRequestIDIsUUID(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(RequestIDHeader)
		_, _ = w.Write([]byte(`0`))
	}))
	defer ts.Close()

	client, err := New(ts.URL)
	require.NoError(t, err)
	_, err = client.Average(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, got, 36)
}
