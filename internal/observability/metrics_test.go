package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGateway_IsSingleton(t *testing.T) {
	assert.Same(t, Gateway(), Gateway())
}

func TestGateway_RecordCheck(t *testing.T) {
	m := Gateway()
	before := testutil.ToFloat64(m.checks.WithLabelValues("started"))

	m.RecordCheck("started")
	m.RecordCheck("started")

	assert.Equal(t, before+2, testutil.ToFloat64(m.checks.WithLabelValues("started")))
}

func TestGateway_RecordMint(t *testing.T) {
	m := Gateway()
	before := testutil.ToFloat64(m.mints.WithLabelValues("failed"))

	m.RecordMint("failed", 3*time.Second)

	assert.Equal(t, before+1, testutil.ToFloat64(m.mints.WithLabelValues("failed")))
}

func TestGateway_ReservationsAndSweep(t *testing.T) {
	m := Gateway()
	m.SetReservations(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(m.reservations))

	before := testutil.ToFloat64(m.swept)
	m.RecordSweep(3)
	m.RecordSweep(0)
	assert.Equal(t, before+3, testutil.ToFloat64(m.swept))
}

func TestGateway_RecordChainQuery(t *testing.T) {
	m := Gateway()
	okBefore := testutil.ToFloat64(m.chainQueries.WithLabelValues("getTransaction", "ok"))
	errBefore := testutil.ToFloat64(m.chainQueries.WithLabelValues("getTransaction", "error"))

	m.RecordChainQuery("getTransaction", nil)
	m.RecordChainQuery("getTransaction", errors.New("timeout"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(m.chainQueries.WithLabelValues("getTransaction", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(m.chainQueries.WithLabelValues("getTransaction", "error")))
}

func TestGatewayMetrics_NilSafe(t *testing.T) {
	var m *GatewayMetrics
	assert.NotPanics(t, func() {
		m.RecordCheck("x")
		m.RecordMint("ok", time.Second)
		m.RecordSettlement("paid")
		m.SetReservations(1)
		m.RecordSweep(1)
		m.RecordChainQuery("m", nil)
	})
}
