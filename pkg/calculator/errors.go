package calculator

import (
	"context"
	"errors"
	"fmt"
)

const (
	opSnapshots           = "list_snapshots"
	opMembershipsSince    = "list_memberships_since"
	opMembershipsForUsers = "list_memberships_for_users"
)

// LedgerReadError reports a failed ledger read. It aborts the whole report.
type LedgerReadError struct {
	Op  string
	Err error
}

// newLedgerReadError counts the failure unless the caller's context ended the read.
func newLedgerReadError(op string, err error) *LedgerReadError {
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		ledgerReadErrors.WithLabelValues(op).Inc()
	}
	return &LedgerReadError{Op: op, Err: err}
}

func (e *LedgerReadError) Error() string {
	return fmt.Sprintf("ledger read %s: %v", e.Op, e.Err)
}

func (e *LedgerReadError) Unwrap() error { return e.Err }
