package calculator

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewLedgerReadErrorCounts(t *testing.T) {
	counter := ledgerReadErrors.WithLabelValues(opSnapshots)
	before := testutil.ToFloat64(counter)

	err := newLedgerReadError(opSnapshots, errors.New("connection reset"))
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
	assert.EqualError(t, err, "ledger read list_snapshots: connection reset")
}

func TestNewLedgerReadErrorSkipsContextErrors(t *testing.T) {
	counter := ledgerReadErrors.WithLabelValues(opMembershipsForUsers)
	before := testutil.ToFloat64(counter)

	err := newLedgerReadError(opMembershipsForUsers, context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	newLedgerReadError(opMembershipsForUsers, context.DeadlineExceeded)
	assert.Equal(t, before, testutil.ToFloat64(counter))
}
