package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveUpload(t *testing.T) {
	before := testutil.ToFloat64(uploadRows.WithLabelValues(OutcomeInserted))
	failedBefore := testutil.ToFloat64(uploadRuns.WithLabelValues("true"))

	ObserveUpload(3, 1, 2, true)

	assert.Equal(t, before+3, testutil.ToFloat64(uploadRows.WithLabelValues(OutcomeInserted)))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(uploadRuns.WithLabelValues("true")))
}

func TestObserveShortlist(t *testing.T) {
	before := testutil.ToFloat64(shortlistRuns.WithLabelValues(ResultConflict))
	selectedBefore := testutil.ToFloat64(shortlistSelected)

	ObserveShortlist(ResultConflict, 0, time.Now())
	ObserveShortlist(ResultCreated, 4, time.Now())

	assert.Equal(t, before+1, testutil.ToFloat64(shortlistRuns.WithLabelValues(ResultConflict)))
	assert.Equal(t, selectedBefore+4, testutil.ToFloat64(shortlistSelected))
}
