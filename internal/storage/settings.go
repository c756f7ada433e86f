package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// GetSetting returns the setting for key, inserting def first when the key
// has never been written. Concurrent first readers race on the insert; the
// first one wins and every caller reads back the stored row.
func (t *Tx) GetSetting(ctx context.Context, key, def string) (*Setting, error) {
	if key == "" {
		return nil, errors.New("setting key is required")
	}
	if _, err := t.q.ExecContext(ctx, `INSERT INTO settings("key", value) VALUES(?, ?) ON CONFLICT("key") DO NOTHING`, key, def); err != nil {
		return nil, fmt.Errorf("insert default %s: %w", key, err)
	}
	st := &Setting{Key: key}
	if err := t.q.QueryRowContext(ctx, `SELECT value FROM settings WHERE "key" = ?`, key).Scan(&st.Value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("setting %s vanished after insert", key)
		}
		return nil, err
	}
	return st, nil
}

// SetSetting upserts value under key.
func (t *Tx) SetSetting(ctx context.Context, key, value string) (*Setting, error) {
	if key == "" {
		return nil, errors.New("setting key is required")
	}
	_, err := t.q.ExecContext(ctx, `INSERT INTO settings("key", value) VALUES(?, ?) ON CONFLICT("key") DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return nil, err
	}
	return &Setting{Key: key, Value: value}, nil
}

// GetSetting is the single-transaction form of Tx.GetSetting.
func (s *Store) GetSetting(ctx context.Context, key, def string) (*Setting, error) {
	var st *Setting
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		st, err = tx.GetSetting(ctx, key, def)
		return err
	})
	return st, err
}

// SetSetting is the single-transaction form of Tx.SetSetting.
func (s *Store) SetSetting(ctx context.Context, key, value string) (*Setting, error) {
	var st *Setting
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		st, err = tx.SetSetting(ctx, key, value)
		return err
	})
	return st, err
}

// Copies returns the copies-per-job setting, creating it with DefaultCopies
// on first use. A stored value that is not a positive integer is reported
// and DefaultCopies is used instead.
func (t *Tx) Copies(ctx context.Context) (int, error) {
	st, err := t.GetSetting(ctx, CopiesKey, strconv.Itoa(DefaultCopies))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(st.Value)
	if err != nil || n < 1 {
		return DefaultCopies, fmt.Errorf("%w: copies=%q", ErrInvalidSetting, st.Value)
	}
	return n, nil
}

// ErrInvalidSetting marks a stored setting that cannot be interpreted.
var ErrInvalidSetting = errors.New("invalid setting value")

// Copies is the single-transaction form of Tx.Copies. Invalid stored values
// are logged and replaced by DefaultCopies.
func (s *Store) Copies(ctx context.Context) (int, error) {
	var n int
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		n, err = tx.Copies(ctx)
		if errors.Is(err, ErrInvalidSetting) {
			s.logger.Warn("ignoring stored copies setting", "error", err, "default", DefaultCopies)
			return nil
		}
		return err
	})
	return n, err
}

// SetCopies stores n as the copies-per-job setting.
func (s *Store) SetCopies(ctx context.Context, n int) error {
	if n < 1 {
		return fmt.Errorf("%w: copies must be at least 1, got %d", ErrInvalidSetting, n)
	}
	_, err := s.SetSetting(ctx, CopiesKey, strconv.Itoa(n))
	return err
}
