package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewRunIDIsSortable(t *testing.T) {
	a := NewRunID()
	b := NewRunID()
	assert.Len(t, a, 26)
	assert.Less(t, a, b)
}

func TestStoreRecordsRunWithFailures(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return start }

	id := NewRunID()
	require.NoError(t, s.Begin(ctx, id, "alpino", "proj1"))

	running, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, running.Status)
	assert.True(t, running.FinishedAt.IsZero())

	s.now = func() time.Time { return start.Add(time.Minute) }
	failures := []UnitFailure{
		{Input: "b.tok", Seq: 4, Error: "parse alpino xml: EOF"},
		{Input: "a.tok", Seq: 2, Error: "alpino document has no words"},
	}
	require.NoError(t, s.Finish(ctx, id, StatusDone, "Done", failures))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	want := Run{
		ID:         id,
		Service:    "alpino",
		Project:    "proj1",
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
		Status:     StatusDone,
		Message:    "Done",
		Failures: []UnitFailure{
			{Input: "a.tok", Seq: 2, Error: "alpino document has no words"},
			{Input: "b.tok", Seq: 4, Error: "parse alpino xml: EOF"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("run mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreGetUnknownRun(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreFinishUnknownRun(t *testing.T) {
	s := openTestStore(t)
	err := s.Finish(context.Background(), "missing", StatusFailed, "boom", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	var ids []string
	for _, service := range []string{"alpino", "ucto", "spacy"} {
		id := NewRunID()
		ids = append(ids, id)
		require.NoError(t, s.Begin(ctx, id, service, ""))
	}

	runs, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, "spacy", runs[0].Service)
	assert.Equal(t, ids[1], runs[1].ID)
}

func TestOpenReusesExistingDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	id := NewRunID()
	require.NoError(t, s.Begin(ctx, id, "ucto", ""))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Get(ctx, id)
	assert.NoError(t, err)
}
