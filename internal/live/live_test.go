package live

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gantu78/WebReactivaFront/internal/api"
	"github.com/Gantu78/WebReactivaFront/internal/model"
	"github.com/Gantu78/WebReactivaFront/internal/stubserver"
)

func newStubSubscriber(t *testing.T, transport string, opts ...Option) (Subscriber, *stubserver.Server) {
	t.Helper()
	stub, ts := stubserver.NewTestServer(t)
	client, err := api.New(ts.URL)
	require.NoError(t, err)
	sub, err := New(transport, client.StreamURL, append([]Option{WithHTTPClient(client.HTTPClient())}, opts...)...)
	require.NoError(t, err)
	return sub, stub
}

func receive(t *testing.T, sub *Subscription) Notification {
	t.Helper()
	select {
	case n, ok := <-sub.Events:
		require.True(t, ok, "stream closed: %v", sub.Err())
		return n
	case <-time.After(2 * time.Second):
		t.Fatalf("no notification for student %d", sub.StudentID)
	}
	return Notification{}
}

func waitClosed(t *testing.T, sub *Subscription) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("stream for student %d never closed", sub.StudentID)
		}
	}
}

func TestNotificationsOverBothTransports(t *testing.T) {
	for _, transport := range []string{TransportSSE, TransportWebSocket} {
		t.Run(transport, func(t *testing.T) {
			subscriber, stub := newStubSubscriber(t, transport)
			subj := stub.SeedSubject(t, "Math101", 4)
			st := stub.SeedStudent(t, "Jane", "Doe", "jane@example.com")

			sub, err := subscriber.Subscribe(context.Background(), *st.ID)
			require.NoError(t, err)
			defer sub.Close()
			require.Eventually(t, func() bool { return stub.Streams(*st.ID) == 1 }, time.Second, 10*time.Millisecond)

			stub.SeedGrade(t, model.Grade{SubjectID: *subj.ID, StudentID: *st.ID, Score: 4, WeightPercent: 50})
			stub.Publish(*subj.ID, *st.ID)

			n := receive(t, sub)
			assert.Equal(t, *st.ID, n.StudentID)
			assert.Contains(t, n.Data, `"average":2`)
			assert.False(t, n.Received.IsZero())
		})
	}
}

func TestCloseTearsDownServerStream(t *testing.T) {
	for _, transport := range []string{TransportSSE, TransportWebSocket} {
		t.Run(transport, func(t *testing.T) {
			subscriber, stub := newStubSubscriber(t, transport)
			st := stub.SeedStudent(t, "Jane", "Doe", "jane@example.com")

			sub, err := subscriber.Subscribe(context.Background(), *st.ID)
			require.NoError(t, err)
			require.Eventually(t, func() bool { return stub.Streams(*st.ID) == 1 }, time.Second, 10*time.Millisecond)

			sub.Close()
			sub.Close()
			waitClosed(t, sub)
			assert.NoError(t, sub.Err())
			assert.Eventually(t, func() bool { return stub.Streams(*st.ID) == 0 }, 2*time.Second, 10*time.Millisecond)
		})
	}
}

func TestServerEndingStreamReportsError(t *testing.T) {
	for _, transport := range []string{TransportSSE, TransportWebSocket} {
		t.Run(transport, func(t *testing.T) {
			subscriber, stub := newStubSubscriber(t, transport)
			st := stub.SeedStudent(t, "Jane", "Doe", "jane@example.com")

			sub, err := subscriber.Subscribe(context.Background(), *st.ID)
			require.NoError(t, err)
			defer sub.Close()
			require.Eventually(t, func() bool { return stub.Streams(*st.ID) == 1 }, time.Second, 10*time.Millisecond)

			stub.CloseStreams()
			waitClosed(t, sub)
			assert.Error(t, sub.Err())
		})
	}
}

func TestSubscribeRejectsNonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer ts.Close()

	for _, transport := range []string{TransportSSE, TransportWebSocket} {
		subscriber, err := New(transport, func(id int64) string { return ts.URL + "/stream" })
		require.NoError(t, err)
		_, err = subscriber.Subscribe(context.Background(), 1)
		require.Error(t, err, transport)
		assert.Contains(t, err.Error(), "404", transport)
	}
}

func TestSubscribeUnreachableBackend(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL
	ts.Close()

	subscriber, err := New(TransportSSE, func(id int64) string { return base + "/stream" })
	require.NoError(t, err)
	_, err = subscriber.Subscribe(context.Background(), 1)
	require.Error(t, err)
}

func TestNewRejectsUnknownTransport(t *testing.T) {
	_, err := New("carrier-pigeon", func(int64) string { return "" })
	require.Error(t, err)
	_, err = New(TransportSSE, nil)
	require.Error(t, err)
}

func TestReadEventsParsesStream(t *testing.T) {
	body := strings.Join([]string{
		": subscribed",
		"",
		"event: average",
		"data: {\"average\":4.5}",
		"",
		"data: line one",
		"data: line two",
		"",
		": keep-alive",
		"",
	}, "\n")
	type got struct{ event, data string }
	var events []got
	err := readEvents(strings.NewReader(body), func(event, data string) {
		events = append(events, got{event, data})
	})
	require.NoError(t, err)
	assert.Equal(t, []got{
		{"average", `{"average":4.5}`},
		{"message", "line one\nline two"},
	}, events)
}

func TestDeliverDropsOldestWhenFull(t *testing.T) {
	o := options{buffer: 2, logger: nopLogger{}, clock: time.Now}
	p := newPump(3, o, nil)
	p.deliver("average", "1")
	p.deliver("average", "2")
	p.deliver("average", "3")

	first := <-p.sub.Events
	second := <-p.sub.Events
	assert.Equal(t, "2", first.Data)
	assert.Equal(t, "3", second.Data)
}

func TestFinishWithoutCloseReportsStreamEnded(t *testing.T) {
	p := newPump(3, options{buffer: 1, logger: nopLogger{}, clock: time.Now}, nil)
	p.finish(nil)
	_, ok := <-p.sub.Events
	assert.False(t, ok)
	assert.True(t, errors.Is(p.sub.Err(), ErrStreamEnded))
}

func TestWebsocketURL(t *testing.T) {
	got, err := websocketURL("https://grades.example/api/grades/stream/average/4")
	require.NoError(t, err)
	assert.Equal(t, "wss://grades.example/api/grades/stream/average/4", got)
	got, err = websocketURL("http://localhost:8080/x")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/x", got)
	_, err = websocketURL("ftp://nope")
	assert.Error(t, err)
}
