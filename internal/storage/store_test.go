package storage_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drop2print/internal/storage"
)

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"), slog.New(slog.DiscardHandler))
	require.NoError(t, err, "store init")
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateGet(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	j, err := s.CreateJob(ctx, "a.pdf", "/spool/x_a.pdf", 2)
	require.NoError(t, err)
	require.NotZero(t, j.ID, "expected id")
	assert.Equal(t, storage.StatusPending, j.Status)
	assert.False(t, j.CreatedAt.IsZero())

	got, err := s.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", got.Filename)
	assert.Equal(t, "/spool/x_a.pdf", got.StoragePath)
	assert.Equal(t, 2, got.Copies)
	assert.Equal(t, storage.StatusPending, got.Status)
	assert.False(t, got.PrintedAt.Valid)
	assert.False(t, got.Error.Valid)
}

func TestGetJobNotFound(t *testing.T) {
	_, err := newStore(t).GetJob(context.Background(), 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateJobValidation(t *testing.T) {
	s := newStore(t)
	_, err := s.CreateJob(context.Background(), "a.pdf", "/x", 0)
	assert.Error(t, err)
	_, err = s.CreateJob(context.Background(), "", "/x", 1)
	assert.Error(t, err)
}

func TestUpdateJobOutcomePrinted(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	j, err := s.CreateJob(ctx, "a.pdf", "/x", 1)
	require.NoError(t, err)

	require.NoError(t, s.UpdateJobOutcome(ctx, j, storage.StatusPrinted, ""))
	assert.Equal(t, storage.StatusPrinted, j.Status)

	got, err := s.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusPrinted, got.Status)
	assert.True(t, got.PrintedAt.Valid, "printed_at set on printed")
	assert.False(t, got.Error.Valid, "error cleared on printed")
}

func TestUpdateJobOutcomeFailed(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	j, err := s.CreateJob(ctx, "a.pdf", "/x", 1)
	require.NoError(t, err)

	require.NoError(t, s.UpdateJobOutcome(ctx, j, storage.StatusFailed, "lp exited 1"))

	got, err := s.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusFailed, got.Status)
	assert.False(t, got.PrintedAt.Valid)
	require.True(t, got.Error.Valid)
	assert.Equal(t, "lp exited 1", got.Error.String)
}

func TestUpdateJobOutcomeOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	j, err := s.CreateJob(ctx, "a.pdf", "/x", 1)
	require.NoError(t, err)
	require.NoError(t, s.UpdateJobOutcome(ctx, j, storage.StatusFailed, "boom"))

	again := *j
	again.Status = storage.StatusPending
	err = s.UpdateJobOutcome(ctx, &again, storage.StatusPrinted, "")
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	got, err := s.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusFailed, got.Status, "terminal status never reversed")
}

func TestUpdateJobOutcomeRejects(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	j, err := s.CreateJob(ctx, "a.pdf", "/x", 1)
	require.NoError(t, err)

	assert.ErrorIs(t, s.UpdateJobOutcome(ctx, j, storage.StatusPending, ""), storage.ErrInvalidTransition)
	assert.ErrorIs(t, s.UpdateJobOutcome(ctx, j, storage.StatusFailed, ""), storage.ErrInvalidTransition)
	assert.ErrorIs(t, s.UpdateJobOutcome(ctx, &storage.PrintJob{ID: 999}, storage.StatusPrinted, ""), storage.ErrNotFound)
}

func TestListRecentJobs(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for i := 0; i < 5; i++ {
		_, err := s.CreateJob(ctx, "f"+strconv.Itoa(i)+".pdf", "/x", 1)
		require.NoError(t, err)
	}

	list, err := s.ListRecentJobs(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "f4.pdf", list[0].Filename)
	for i := 1; i < len(list); i++ {
		assert.False(t, list[i].CreatedAt.After(list[i-1].CreatedAt), "descending by created_at")
		assert.Less(t, list[i].ID, list[i-1].ID)
	}

	all, err := s.ListRecentJobs(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	_, err = s.ListRecentJobs(ctx, 0)
	assert.Error(t, err)
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for _, st := range []storage.JobStatus{storage.StatusPrinted, storage.StatusPrinted, storage.StatusFailed} {
		j, err := s.CreateJob(ctx, "a.pdf", "/x", 1)
		require.NoError(t, err)
		msg := ""
		if st == storage.StatusFailed {
			msg = "boom"
		}
		require.NoError(t, s.UpdateJobOutcome(ctx, j, st, msg))
	}
	_, err := s.CreateJob(ctx, "pending.pdf", "/x", 1)
	require.NoError(t, err)

	total, err := s.CountJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	printed, err := s.CountJobsByStatus(ctx, storage.StatusPrinted)
	require.NoError(t, err)
	assert.Equal(t, 2, printed)

	failed, err := s.CountJobsByStatus(ctx, storage.StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	_, err = s.CountJobsByStatus(ctx, "queued")
	assert.Error(t, err)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx *storage.Tx) error {
		if _, err := tx.CreateJob(ctx, "a.pdf", "/x", 1); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := s.CountJobs(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "rolled back insert")
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(tx *storage.Tx) error {
			_, _ = tx.CreateJob(ctx, "a.pdf", "/x", 1)
			panic("boom")
		})
	})

	n, err := s.CountJobs(ctx)
	require.NoError(t, err, "connection released after panic")
	assert.Zero(t, n)
}
