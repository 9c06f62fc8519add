package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordStop_DefaultsBlockedKind(t *testing.T) {
	before := testutil.ToFloat64(stopReasons.WithLabelValues("completed", "none"))
	RecordStop("completed", "")
	assert.Equal(t, before+1, testutil.ToFloat64(stopReasons.WithLabelValues("completed", "none")))
}

func TestRecordPlanWarnings_IgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(planWarnings)
	RecordPlanWarnings(0)
	RecordPlanWarnings(3)
	assert.Equal(t, before+3, testutil.ToFloat64(planWarnings))
}

func TestRecordAttempt(t *testing.T) {
	before := testutil.ToFloat64(attemptsTotal.WithLabelValues("primary", "ok"))
	RecordAttempt("primary", "ok", 0.3)
	assert.Equal(t, before+1, testutil.ToFloat64(attemptsTotal.WithLabelValues("primary", "ok")))
}
