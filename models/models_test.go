package models

import (
	"errors"
	"reflect"
	"testing"
)

func TestRunStatus(t *testing.T) {
	run := NewRun("myproject", "model.json", "out", "xcvu13p-flga2577-2-e")
	if run.Status() != StatusSubmitted {
		t.Fatalf("expected %s, got %s", StatusSubmitted, run.Status())
	}
	if run.HasStarted() || run.HasFinished() {
		t.Fatal("a new run has neither started nor finished")
	}
	if len(run.Token) != 64 {
		t.Errorf("expected a 64 character token, got %q", run.Token)
	}

	run.Events = []RunEvent{{Status: StatusStarted}, {Status: StatusCompiled}}
	if run.Status() != StatusCompiled || !run.HasStarted() || run.HasFinished() {
		t.Errorf("unexpected state for %s", run.Status())
	}
	run.Events = append(run.Events, RunEvent{Status: StatusErrored})
	if !run.HasFinished() {
		t.Error("errored runs are finished")
	}
}

func TestRunKeys(t *testing.T) {
	run := Run{ID: "abc"}
	if run.ArtifactKey() != "runs/abc/project.zip" {
		t.Error(run.ArtifactKey())
	}
	if run.ReportKey() != "runs/abc/vivado_synth.rpt" {
		t.Error(run.ReportKey())
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		current, next string
		expected      bool
	}{
		{StatusSubmitted, StatusStarted, true},
		{StatusSubmitted, StatusCompiled, false},
		{StatusStarted, StatusCompiled, true},
		{StatusStarted, StatusSynthesizing, false},
		{StatusCompiled, StatusSynthesizing, true},
		{StatusCompiled, StatusCompleted, true},
		{StatusSynthesizing, StatusCompleted, true},
		{StatusSynthesizing, StatusErrored, true},
		{StatusCompleted, StatusErrored, false},
		{StatusErrored, StatusStarted, false},
	}
	for _, c := range cases {
		if actual := CanTransition(c.current, c.next); actual != c.expected {
			t.Errorf("%s -> %s: expected %v, got %v", c.current, c.next, c.expected, actual)
		}
	}
}

type fakeRows struct {
	ids     []string
	scanErr error
	err     error
	closed  bool
}

func (r *fakeRows) Next() bool { return len(r.ids) > 0 }

func (r *fakeRows) Scan(dest ...interface{}) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	*dest[0].(*string) = r.ids[0]
	r.ids = r.ids[1:]
	return nil
}

func (r *fakeRows) Err() error   { return r.err }
func (r *fakeRows) Close() error { r.closed = true; return nil }

func TestScanIDs(t *testing.T) {
	rows := &fakeRows{ids: []string{"a", "b"}}
	ids, err := scanIDs(rows)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{"a", "b"}) || !rows.closed {
		t.Errorf("unexpected ids %v, closed %v", ids, rows.closed)
	}

	scanErr := errors.New("bad column")
	rows = &fakeRows{ids: []string{"a"}, scanErr: scanErr}
	if _, err := scanIDs(rows); err != scanErr || !rows.closed {
		t.Errorf("expected scan error, got %v", err)
	}

	iterErr := errors.New("connection reset")
	rows = &fakeRows{err: iterErr}
	if _, err := scanIDs(rows); err != iterErr || !rows.closed {
		t.Errorf("expected iteration error, got %v", err)
	}
}
