package storage_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drop2print/internal/storage"
)

func TestGetSettingCreatesDefault(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	st, err := s.GetSetting(ctx, "copies", "1")
	require.NoError(t, err)
	assert.Equal(t, "1", st.Value)

	// an existing row wins over a different default
	st, err = s.GetSetting(ctx, "copies", "7")
	require.NoError(t, err)
	assert.Equal(t, "1", st.Value)
}

func TestSetSettingRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.SetSetting(ctx, "copies", "3")
	require.NoError(t, err)
	_, err = s.SetSetting(ctx, "copies", "4")
	require.NoError(t, err)

	st, err := s.GetSetting(ctx, "copies", "1")
	require.NoError(t, err)
	assert.Equal(t, "4", st.Value)
}

func TestCopies(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	n, err := s.Copies(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultCopies, n)

	require.NoError(t, s.SetCopies(ctx, 5))
	n, err = s.Copies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	assert.ErrorIs(t, s.SetCopies(ctx, 0), storage.ErrInvalidSetting)
}

func TestCopiesIgnoresGarbage(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, err := s.SetSetting(ctx, storage.CopiesKey, "lots")
	require.NoError(t, err)

	n, err := s.Copies(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultCopies, n)
}

func TestConcurrentGetSettingSingleRow(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	defaults := []string{"2", "3"}
	got := make([]string, len(defaults))
	errs := make([]error, len(defaults))

	var wg sync.WaitGroup
	for i, def := range defaults {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := s.GetSetting(ctx, "copies", def)
			errs[i] = err
			if err == nil {
				got[i] = st.Value
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err, "no duplicate-key failure surfaced")
	}
	assert.Equal(t, got[0], got[1], "both callers read the same row")
	assert.Contains(t, defaults, got[0])

	st, err := s.GetSetting(ctx, "copies", "9")
	require.NoError(t, err)
	assert.Equal(t, got[0], st.Value, "later defaults never replace the stored row")
}
