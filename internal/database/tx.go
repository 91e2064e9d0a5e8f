package database

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/pageza/recipeshare/backend/internal/apperror"
	"github.com/pageza/recipeshare/backend/internal/logging"
	"github.com/pageza/recipeshare/backend/internal/metrics"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Runner executes units of work: one transaction per call, bounded by a
// timeout, rerun from scratch when an unclassified unique violation occurs
// (an allocated identifier lost a race) or the store aborted it as a
// deadlock victim.
type Runner struct {
	db         *gorm.DB
	timeout    time.Duration
	maxRetries int
}

func NewRunner(db *gorm.DB, timeout time.Duration, maxRetries int) *Runner {
	return &Runner{db: db, timeout: timeout, maxRetries: maxRetries}
}

// DB returns the underlying handle for read-only queries.
func (r *Runner) DB() *gorm.DB {
	return r.db
}

// WithTimeout returns a copy of the runner using a different timeout.
func (r *Runner) WithTimeout(d time.Duration) *Runner {
	cp := *r
	cp.timeout = d
	return &cp
}

// Transact runs fn inside a transaction. Any error from fn rolls the whole
// transaction back. Classified errors (apperror) are returned unchanged and
// never retried.
func (r *Runner) Transact(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	start := time.Now()
	for attempt := 0; ; attempt++ {
		err := r.once(ctx, fn)
		if err == nil {
			metrics.RecordTransaction(op, metrics.OutcomeCommitted, time.Since(start))
			return nil
		}
		if apperror.IsClassified(err) {
			metrics.RecordTransaction(op, metrics.OutcomeRejected, time.Since(start))
			return err
		}
		if !IsRetryable(err) || ctx.Err() != nil {
			metrics.RecordTransaction(op, metrics.OutcomeFailed, time.Since(start))
			return err
		}
		if attempt >= r.maxRetries {
			if IsDuplicateKey(err) {
				metrics.RecordTransaction(op, metrics.OutcomeRejected, time.Since(start))
				return apperror.Wrap(apperror.KindConflict, op, err, "identifier conflict persisted after retries")
			}
			metrics.RecordTransaction(op, metrics.OutcomeFailed, time.Since(start))
			return fmt.Errorf("%s failed after %d attempts: %w", op, attempt+1, err)
		}

		metrics.RecordRetry(op)
		logging.Ctx(ctx).Debug().Err(err).Str("op", op).Int("attempt", attempt+1).Msg("retrying unit of work")
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			metrics.RecordTransaction(op, metrics.OutcomeFailed, time.Since(start))
			return err
		}
	}
}

// backoff spreads competing retries apart: up to 2ms doubled per attempt,
// capped at 100ms.
func backoff(attempt int) time.Duration {
	limit := 2 * time.Millisecond << min(attempt, 6)
	if limit > 100*time.Millisecond {
		limit = 100 * time.Millisecond
	}
	return time.Duration(rand.Int64N(int64(limit)) + 1)
}

func (r *Runner) once(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	err := r.db.WithContext(ctx).Transaction(fn)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !apperror.IsClassified(err) {
		return fmt.Errorf("unit of work timed out after %s: %w", r.timeout, err)
	}
	return err
}

// IsDuplicateKey reports whether err is a unique or primary key violation.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

// IsRetryable reports whether rerunning a failed unit of work can succeed.
func IsRetryable(err error) bool {
	if IsDuplicateKey(err) {
		return true
	}
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 40P01") ||
		strings.Contains(msg, "SQLSTATE 40001") ||
		strings.Contains(msg, "database is locked")
}

// ForUpdate adds a row lock on dialects that support one. sqlite write
// transactions already hold the database lock.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if IsPostgres(tx) {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// RoundedAverageSQL renders AVG(col) rounded half-up to two decimals using
// integer division, so postgres and sqlite agree with each other and with
// exact decimal rounding. It yields NULL over an empty set.
func RoundedAverageSQL(col string) string {
	return "((200 * SUM(" + col + ") + COUNT(*)) / (2 * COUNT(*))) / 100.0"
}
