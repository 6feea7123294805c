package jobs

import (
	"testing"

	"clamservices/internal/domain"
)

// TestManagerLifecycle verifies normal progression to done state.
func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	if m.IsRunning() {
		t.Fatal("new manager should be pending")
	}

	if err := m.Start("run-1", "a.txt"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.IsRunning() {
		t.Fatal("expected running after start")
	}

	for _, status := range []domain.JobStatus{
		domain.JobStatusProcessing,
		domain.JobStatusCollecting,
		domain.JobStatusConverting,
		domain.JobStatusDone,
	} {
		if err := m.Transition(status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	current := m.Current()
	if current.Status != domain.JobStatusDone || current.Input != "a.txt" {
		t.Fatalf("current = %+v, want done for a.txt", current)
	}

	if err := m.Start("run-1", "b.txt"); err != nil {
		t.Fatalf("start second input: %v", err)
	}
}

// TestManagerRejectsInvalidTransition checks state machine constraints.
func TestManagerRejectsInvalidTransition(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1", "a.txt"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := m.Transition(domain.JobStatusConverting); err == nil {
		t.Fatal("expected invalid transition error")
	}
	if err := m.Start("run-1", "b.txt"); err != ErrInputInProgress {
		t.Fatalf("second start error = %v, want %v", err, ErrInputInProgress)
	}
}

// TestManagerFail verifies failure from a running stage and no-op when idle.
func TestManagerFail(t *testing.T) {
	m := NewManager()
	m.Fail()
	if m.Current().Status != domain.JobStatusPending {
		t.Fatalf("status = %s, want pending", m.Current().Status)
	}

	if err := m.Start("run-1", "a.txt"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Transition(domain.JobStatusProcessing); err != nil {
		t.Fatalf("transition: %v", err)
	}
	m.Fail()
	if m.Current().Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", m.Current().Status)
	}
}
