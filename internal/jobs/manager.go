package jobs

import (
	"errors"
	"fmt"
	"sync"

	"clamservices/internal/domain"
)

// ErrInputInProgress is returned when a new input starts before the previous one finished.
var ErrInputInProgress = errors.New("input already in progress")

// Manager tracks the stage of the input being processed and its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Job
}

// NewManager creates a manager in pending state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Job{
			Status: domain.JobStatusPending,
		},
	}
}

// Start begins processing one input and moves it to preprocessing.
func (m *Manager) Start(runID, input string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isRunning(m.current.Status) {
		return ErrInputInProgress
	}

	m.current = domain.Job{
		ID:     runID,
		Input:  input,
		Status: domain.JobStatusPreprocessing,
	}
	return nil
}

// Transition validates and applies a stage change for the current input.
func (m *Manager) Transition(status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Input == "" && status != domain.JobStatusPending {
		return fmt.Errorf("cannot transition without an active input")
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.current.Status = status
	return nil
}

// Fail moves a running input to failed. It is a no-op otherwise.
func (m *Manager) Fail() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if isRunning(m.current.Status) {
		m.current.Status = domain.JobStatusFailed
	}
}

// Current returns a snapshot of the current input.
func (m *Manager) Current() domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsRunning reports whether the current state is an active stage.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isRunning(m.current.Status)
}

func isRunning(status domain.JobStatus) bool {
	switch status {
	case domain.JobStatusPreprocessing, domain.JobStatusProcessing,
		domain.JobStatusCollecting, domain.JobStatusConverting:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed stage edges.
func isValidTransition(from, to domain.JobStatus) bool {
	switch from {
	case domain.JobStatusPending:
		return to == domain.JobStatusPreprocessing
	case domain.JobStatusPreprocessing:
		return to == domain.JobStatusProcessing || to == domain.JobStatusFailed
	case domain.JobStatusProcessing:
		return to == domain.JobStatusCollecting || to == domain.JobStatusDone || to == domain.JobStatusFailed
	case domain.JobStatusCollecting:
		return to == domain.JobStatusConverting || to == domain.JobStatusFailed
	case domain.JobStatusConverting:
		return to == domain.JobStatusDone || to == domain.JobStatusFailed
	case domain.JobStatusDone, domain.JobStatusFailed:
		return to == domain.JobStatusPreprocessing || to == domain.JobStatusPending
	default:
		return false
	}
}
