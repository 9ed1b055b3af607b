// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/headcount-budget/budget"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	orgUnits     map[budget.OrgUnitID]budget.OrgUnit
	budgets      map[key]budget.Budget
	forecasts    map[key]budget.Forecast
	actuals      map[key]budget.Actual
	requisitions map[budget.RequisitionID]budget.Requisition
	offers       map[budget.OfferID]budget.Offer
}

// key identifies the single monthly row of an org unit.
type key struct {
	OrgUnitID budget.OrgUnitID
	Month     budget.Month
}

func NewMemory() *Memory {
	return &Memory{
		orgUnits:     make(map[budget.OrgUnitID]budget.OrgUnit),
		budgets:      make(map[key]budget.Budget),
		forecasts:    make(map[key]budget.Forecast),
		actuals:      make(map[key]budget.Actual),
		requisitions: make(map[budget.RequisitionID]budget.Requisition),
		offers:       make(map[budget.OfferID]budget.Offer),
	}
}

// =============================================================================
// WRITES - Upserts keyed by ID or (org unit, month)
// =============================================================================

func (m *Memory) SaveOrgUnit(u budget.OrgUnit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgUnits[u.ID] = u
}

func (m *Memory) SaveBudget(b budget.Budget) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budgets[key{b.OrgUnitID, b.Month}] = b
}

func (m *Memory) SaveForecast(f budget.Forecast) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forecasts[key{f.OrgUnitID, f.Month}] = f
}

func (m *Memory) SaveActual(a budget.Actual) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actuals[key{a.OrgUnitID, a.Month}] = a
}

func (m *Memory) SaveRequisition(r budget.Requisition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requisitions[r.ID] = r
}

// SaveOffer stores an offer. OrgUnitID is filled from the requisition when
// the caller left it empty.
func (m *Memory) SaveOffer(o budget.Offer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.OrgUnitID == "" {
		if r, ok := m.requisitions[o.RequisitionID]; ok {
			o.OrgUnitID = r.OrgUnitID
		}
	}
	m.offers[o.ID] = o
}

// =============================================================================
// READS - budget.Store
// =============================================================================

func (m *Memory) GetOrgUnit(_ context.Context, id budget.OrgUnitID) (*budget.OrgUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.orgUnits[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *Memory) ListBudgets(_ context.Context, orgUnitID budget.OrgUnitID) ([]budget.Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []budget.Budget
	for k, b := range m.budgets {
		if k.OrgUnitID == orgUnitID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out, nil
}

func (m *Memory) ListForecasts(_ context.Context, orgUnitID budget.OrgUnitID) ([]budget.Forecast, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []budget.Forecast
	for k, f := range m.forecasts {
		if k.OrgUnitID == orgUnitID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out, nil
}

func (m *Memory) ListActuals(_ context.Context, orgUnitID budget.OrgUnitID) ([]budget.Actual, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []budget.Actual
	for k, a := range m.actuals {
		if k.OrgUnitID == orgUnitID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out, nil
}

func (m *Memory) ListRequisitions(_ context.Context, orgUnitID budget.OrgUnitID) ([]budget.Requisition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []budget.Requisition
	for _, r := range m.requisitions {
		if r.OrgUnitID == orgUnitID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListOffers joins through the requisition so offers follow their
// requisition's org unit.
func (m *Memory) ListOffers(_ context.Context, orgUnitID budget.OrgUnitID) ([]budget.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []budget.Offer
	for _, o := range m.offers {
		unit := o.OrgUnitID
		if r, ok := m.requisitions[o.RequisitionID]; ok {
			unit = r.OrgUnitID
		}
		if unit == orgUnitID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetOffer(_ context.Context, id budget.OfferID) (*budget.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.offers[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

var _ budget.Store = (*Memory)(nil)
