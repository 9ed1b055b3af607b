/*
scheduler.go - Background budget health monitor

PURPOSE:
  Periodically computes the summary of every active org unit and warns about
  the first RED month in its window, so over-commitment shows up in the logs
  before anyone opens the dashboard.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs one check immediately on Start
  - Reads through the same Engine as the HTTP handlers, nothing is cached
  - One alert per org unit: the earliest RED month

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether the monitor is active (default: true)
  - MonthsAhead: Months after the current one to inspect (default: 6)

USAGE:
  monitor := NewHealthMonitor(store, engine, logger)
  monitor.Start()
  // ... later
  monitor.Stop()

SEE ALSO:
  - handlers.go: ListAlerts endpoint (manual check)
  - budget/engine.go: Summary
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/headcount-budget/budget"
	"github.com/warp/headcount-budget/store/sqlite"
)

// Alert is the first RED month found for an org unit.
type Alert struct {
	OrgUnitID   string          `json:"org_unit_id"`
	OrgUnitName string          `json:"org_unit_name"`
	Month       budget.Month    `json:"month"`
	Approved    decimal.Decimal `json:"approved"`
	Remaining   decimal.Decimal `json:"remaining"`
}

// HealthMonitor checks every active org unit on a ticker.
type HealthMonitor struct {
	Store         *sqlite.Store
	Engine        *budget.Engine
	Log           logrus.FieldLogger
	CheckInterval time.Duration
	Enabled       bool
	MonthsAhead   int

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewHealthMonitor creates a new monitor.
func NewHealthMonitor(store *sqlite.Store, engine *budget.Engine, log logrus.FieldLogger) *HealthMonitor {
	return &HealthMonitor{
		Store:         store,
		Engine:        engine,
		Log:           log,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		MonthsAhead:   6,
	}
}

// Start begins the monitor.
func (m *HealthMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.Enabled {
		m.Log.Info("health monitor disabled, not starting")
		return
	}
	if m.ticker != nil {
		return
	}

	m.ticker = time.NewTicker(m.CheckInterval)
	m.stop = make(chan struct{})
	m.wg.Add(1)

	go m.run()

	m.Log.WithField("interval", m.CheckInterval).Info("health monitor started")
}

// Stop stops the monitor and waits for a running check to finish.
func (m *HealthMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker != nil {
		m.ticker.Stop()
		close(m.stop)
		m.wg.Wait()
		m.ticker = nil
		m.Log.Info("health monitor stopped")
	}
}

func (m *HealthMonitor) run() {
	defer m.wg.Done()

	// Run immediately on start
	m.checkAndLog()

	for {
		select {
		case <-m.ticker.C:
			m.checkAndLog()
		case <-m.stop:
			return
		}
	}
}

func (m *HealthMonitor) checkAndLog() {
	if _, err := m.Check(context.Background()); err != nil {
		m.Log.WithError(err).Error("health check failed")
	}
}

// Check runs one pass and returns one alert per org unit that has a RED
// month in [last month, current + MonthsAhead - 1]. Inactive units are
// skipped.
func (m *HealthMonitor) Check(ctx context.Context) ([]Alert, error) {
	units, err := m.Store.ListOrgUnits(ctx)
	if err != nil {
		return nil, err
	}

	alerts := []Alert{}
	checked := 0
	for _, u := range units {
		if !u.Active {
			continue
		}
		checked++

		summary, err := m.Engine.Summary(ctx, u.ID, m.MonthsAhead)
		if err != nil {
			m.Log.WithError(err).WithField("org_unit_id", u.ID).Warn("failed to compute summary")
			continue
		}

		for _, h := range summary {
			if h.Status != budget.HealthRed {
				continue
			}
			alert := Alert{
				OrgUnitID:   string(u.ID),
				OrgUnitName: u.Name,
				Month:       h.Month,
				Approved:    h.Approved,
				Remaining:   h.Remaining,
			}
			alerts = append(alerts, alert)
			m.Log.WithFields(logrus.Fields{
				"org_unit_id": u.ID,
				"month":       h.Month.String(),
				"approved":    h.Approved.String(),
				"remaining":   h.Remaining.String(),
			}).Warn("org unit over budget")
			break
		}
	}

	m.Log.WithFields(logrus.Fields{
		"checked": checked,
		"red":     len(alerts),
	}).Debug("health check completed")
	return alerts, nil
}

// GetNextRunTime returns when the next scheduled check will occur.
func (m *HealthMonitor) GetNextRunTime() time.Time {
	return time.Now().Add(m.CheckInterval)
}
