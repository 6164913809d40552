package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/batchmut/types"
)

func TestNewNop(t *testing.T) {
	collector := NewNop()
	require.NotNil(t, collector)
}

func TestNopMetrics_ImplementsInterface(t *testing.T) {
	t.Helper()
	var _ types.MetricsCollector = (*NopMetrics)(nil)
}

func TestNopMetrics_AllMethodsNoOp(t *testing.T) {
	collector := NewNop()

	require.NotPanics(t, func() {
		collector.RecordTickDuration(0.001)
		collector.SetRegisteredTransformers(3)
		collector.SetInFlightChunks(2)
		collector.SetPendingResults(1)
		collector.RecordDispatch("sway", 1)
		collector.RecordChunkResolved("sway", false, 0.002)
		collector.RecordChunkResolved("sway", true, 0.002)
		collector.RecordResultDiscarded("stale_target")
		collector.RecordApplyDuration(0.0005)
		collector.RecordMutationsApplied(8)
		collector.RecordLockContention("sway")
	})
}
