package events

import (
	"context"
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ReconfigureIO/hlsflow/models"
	"gotest.tools/v3/assert"
)

func callback(t *testing.T, codes ...int) (*httptest.Server, *int32, chan Event) {
	var calls int32
	received := make(chan Event, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Check(t, r.Header.Get("Authorization") == "Bearer secret")
		b, err := ioutil.ReadAll(r.Body)
		assert.Check(t, err)
		var e Event
		assert.Check(t, json.Unmarshal(b, &e))
		select {
		case received <- e:
		default:
		}
		code := codes[len(codes)-1]
		if int(n) <= len(codes) {
			code = codes[n-1]
		}
		w.WriteHeader(code)
	}))
	return srv, &calls, received
}

func service(url string) *CallbackService {
	s := NewCallbackService(url, "secret")
	s.MaxElapsed = 5 * time.Second
	return s
}

func TestSendRetries(t *testing.T) {
	srv, calls, received := callback(t, http.StatusServiceUnavailable, http.StatusOK)
	defer srv.Close()

	e := Event{RunID: "abc", Status: models.StatusStarted, Stage: "load", Timestamp: time.Now()}
	assert.NilError(t, service(srv.URL).Send(context.Background(), e))
	assert.Equal(t, atomic.LoadInt32(calls), int32(2))
	first := <-received
	assert.Equal(t, first.RunID, "abc")
	assert.Equal(t, first.Stage, "load")
}

func TestSendPermanentFailure(t *testing.T) {
	srv, calls, _ := callback(t, http.StatusBadRequest)
	defer srv.Close()

	err := service(srv.URL).Send(context.Background(), Event{RunID: "abc", Status: models.StatusErrored})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("expected a 400 StatusError, got %v", err)
	}
	assert.Equal(t, atomic.LoadInt32(calls), int32(1))
}

func TestSendCancelled(t *testing.T) {
	srv, _, _ := callback(t, http.StatusServiceUnavailable)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	s := service(srv.URL)
	s.MaxElapsed = time.Hour
	err := s.Send(ctx, Event{RunID: "abc", Status: models.StatusStarted})
	assert.Assert(t, err != nil)
}

func TestPostRunEvent(t *testing.T) {
	e := Event{RunID: "abc", Status: models.StatusErrored, Stage: "synth", Message: "exit status 1", Code: 1}
	assert.DeepEqual(t, e.PostRunEvent(), models.PostRunEvent{
		Status:  models.StatusErrored,
		Stage:   "synth",
		Message: "exit status 1",
		Code:    1,
	})
}

func TestForRun(t *testing.T) {
	s := NewCallbackService("http://localhost/events", "")
	scoped := s.ForRun("secret").(*CallbackService)
	assert.Equal(t, scoped.Token, "secret")
	assert.Equal(t, s.Token, "")
	assert.Equal(t, scoped.URL, s.URL)
}
