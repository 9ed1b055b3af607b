package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthMonitor_CheckReportsFirstRedMonth(t *testing.T) {
	// GIVEN: The multi-unit scenario (product green, finance yellow, ops
	//        without any approved budget)
	// WHEN: Running one check
	// THEN: Only operations is reported, at last month

	h, srv := newTestServer(t)
	loadScenario(t, srv, "multi-unit")

	alerts, err := h.Monitor.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	alert := alerts[0]
	assert.Equal(t, "ou-ops", alert.OrgUnitID)
	assert.Equal(t, "Operations", alert.OrgUnitName)
	assert.Equal(t, "2025-12", alert.Month.String())
	assertDecimal(t, "0", alert.Approved)
	assertDecimal(t, "-90000", alert.Remaining)
}

func TestHealthMonitor_SkipsInactiveUnits(t *testing.T) {
	h, srv := newTestServer(t)
	loadScenario(t, srv, "multi-unit")

	ctx := context.Background()
	ops, err := h.Store.GetOrgUnit(ctx, "ou-ops")
	require.NoError(t, err)
	require.NotNil(t, ops)
	ops.Active = false
	require.NoError(t, h.Store.SaveOrgUnit(ctx, *ops))

	alerts, err := h.Monitor.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestHealthMonitor_StartStop(t *testing.T) {
	h, srv := newTestServer(t)
	loadScenario(t, srv, "multi-unit")

	h.Monitor.CheckInterval = 10 * time.Millisecond
	h.Monitor.Start()
	h.Monitor.Start() // second start is a no-op
	time.Sleep(30 * time.Millisecond)
	h.Monitor.Stop()
	h.Monitor.Stop()

	assert.WithinDuration(t, time.Now().Add(10*time.Millisecond), h.Monitor.GetNextRunTime(), time.Second)
}

func TestHealthMonitor_DisabledDoesNotStart(t *testing.T) {
	h, _ := newTestServer(t)

	h.Monitor.Enabled = false
	h.Monitor.Start()
	assert.Nil(t, h.Monitor.ticker)
	h.Monitor.Stop()
}

func TestListAlerts(t *testing.T) {
	_, srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/admin/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	loadScenario(t, srv, "multi-unit")

	rec = do(t, srv, http.MethodGet, "/api/admin/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	alerts := decodeBody[[]Alert](t, rec)
	require.Len(t, alerts, 1)
	assert.Equal(t, "ou-ops", alerts[0].OrgUnitID)
}
