package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func find(t *testing.T, r *Registry, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := r.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NotNil(t, reg)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs, "runtime collectors should be registered")
}

func TestRegistry_RecordTrade(t *testing.T) {
	reg := NewRegistry()
	reg.RecordTrade("VIABLE_RESULT")
	reg.RecordTrade("VIABLE_RESULT")
	reg.RecordTrade("NO_ENTRY")

	mf := find(t, reg, "orb_trades_total")
	require.NotNil(t, mf)
	counts := map[string]float64{}
	for _, m := range mf.GetMetric() {
		counts[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{"VIABLE_RESULT": 2, "NO_ENTRY": 1}, counts)
}

func TestRegistry_RecordGateRejection(t *testing.T) {
	reg := NewRegistry()
	reg.RecordGateRejection("MGC")

	mf := find(t, reg, "orb_cost_gate_rejections_total")
	require.NotNil(t, mf)
	assert.Equal(t, 1.0, mf.GetMetric()[0].GetCounter().GetValue())
}

func TestRegistry_RecordBatch(t *testing.T) {
	reg := NewRegistry()
	reg.RecordBatch("success", 2.5)
	reg.RecordSimulation(0.002)

	mf := find(t, reg, "orb_batches_total")
	require.NotNil(t, mf)
	assert.Equal(t, "success", mf.GetMetric()[0].GetLabel()[0].GetValue())

	hist := find(t, reg, "orb_batch_duration_seconds")
	require.NotNil(t, hist)
	assert.Equal(t, uint64(1), hist.GetMetric()[0].GetHistogram().GetSampleCount())

	sim := find(t, reg, "orb_simulation_duration_seconds")
	require.NotNil(t, sim)
	assert.Equal(t, 0.002, sim.GetMetric()[0].GetHistogram().GetSampleSum())
}

func TestRegistry_Workers(t *testing.T) {
	reg := NewRegistry()
	reg.WorkerInc()
	reg.WorkerInc()
	reg.WorkerDec()

	mf := find(t, reg, "orb_workers_active")
	require.NotNil(t, mf)
	assert.Equal(t, 1.0, mf.GetMetric()[0].GetGauge().GetValue())
}

func TestRegistry_WriteTextfile(t *testing.T) {
	reg := NewRegistry()
	reg.RecordTrade("OPEN")

	path := filepath.Join(t.TempDir(), "orb.prom")
	require.NoError(t, reg.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `orb_trades_total{state="OPEN"} 1`))
}
