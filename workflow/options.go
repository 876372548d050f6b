// Package workflow implements the draft, publish and rollback lifecycles
// for versioned documents, settings keys and the ops schema. Every
// multi-record write of one operation runs inside one store transaction.
package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/hallops/generic"
)

// Option configures a workflow service.
type Option func(*deps)

type deps struct {
	newID func() string
	now   func() time.Time
}

func newDeps(opts []Option) deps {
	d := deps{newID: uuid.NewString, now: time.Now}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

// WithIDs overrides uuid generation.
func WithIDs(newID func() string) Option {
	return func(d *deps) { d.newID = newID }
}

// txError tags a storage failure inside a transaction. Client errors pass
// through unchanged.
func txError(op string, err error) error {
	if err == nil || generic.IsClientError(err) || generic.IsNotFound(err) || generic.IsConflict(err) ||
		errors.Is(err, generic.ErrTransactionFailed) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, generic.ErrTransactionFailed, err)
}
