package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	CheckIns.WithLabelValues("completed").Inc()
	TxRetries.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["habit_check_ins_total"])
	assert.True(t, names["store_tx_retries_total"])

	assert.Panics(t, func() { Register(reg) }, "double registration must fail loudly")
}
