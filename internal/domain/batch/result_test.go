package batch

import (
	"errors"
	"testing"
)

func TestNewOK(t *testing.T) {
	r := NewOK("1-p-1")
	if r.ID() != "1-p-1" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Status() != StatusOK {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusOK)
	}
	if r.Err() != nil {
		t.Errorf("Err() = %v, want nil", r.Err())
	}
}

func TestNewError(t *testing.T) {
	err := errors.New("something failed")
	r := NewError("1-p-2", err)
	if r.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusError)
	}
	if !errors.Is(r.Err(), err) {
		t.Errorf("Err() = %v, want %v", r.Err(), err)
	}
}

func TestNewSkipped(t *testing.T) {
	reason := errors.New("auto-draft")
	r := NewSkipped("1-p-3", reason)
	if r.Status() != StatusSkipped {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusSkipped)
	}
	if !errors.Is(r.Err(), reason) {
		t.Errorf("Err() = %v, want %v", r.Err(), reason)
	}
}

func TestSummarize(t *testing.T) {
	results := []Result{
		NewOK("a"), NewOK("b"),
		NewSkipped("c", nil),
		NewError("d", errors.New("x")),
	}
	got := Summarize(results)
	want := Summary{OK: 2, Skipped: 1, Failed: 1}
	if got != want {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}
}
