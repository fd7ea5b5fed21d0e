package health

import (
	"context"
	"errors"
	"sync"

	"github.com/velia-labs/settler/internal/infra/chain"
	"github.com/velia-labs/settler/internal/infra/storage"
)

// DegradedLag is the reconciliation lag (blocks) at which a chain is
// reported degraded; 10x that is critical.
const DegradedLag = 50

// Monitor aggregates infrastructure probes and reconciliation lag.
type Monitor struct {
	mu      sync.RWMutex
	checks  []Check
	readers map[string]chain.Reader
	cursors storage.CursorRepository
}

// NewMonitor creates a health monitor.
func NewMonitor(cursors storage.CursorRepository) *Monitor {
	return &Monitor{
		readers: make(map[string]chain.Reader),
		cursors: cursors,
	}
}

// AddCheck registers an infrastructure probe (database, redis, ...).
func (m *Monitor) AddCheck(name string, probe func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, Check{Name: name, Probe: probe})
}

// AddChain registers a chain for lag reporting.
func (m *Monitor) AddChain(chainID string, reader chain.Reader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readers[chainID] = reader
}

// CheckInfra runs all registered probes.
func (m *Monitor) CheckInfra(ctx context.Context) map[string]Report {
	m.mu.RLock()
	checks := make([]Check, len(m.checks))
	copy(checks, m.checks)
	m.mu.RUnlock()

	out := make(map[string]Report, len(checks))
	for _, c := range checks {
		if err := c.Probe(ctx); err != nil {
			out[c.Name] = Report{Status: StatusCritical, Error: err.Error()}
		} else {
			out[c.Name] = Report{Status: StatusHealthy}
		}
	}
	return out
}

// CheckLag reports reconciliation lag per chain.
func (m *Monitor) CheckLag(ctx context.Context) []LagReport {
	m.mu.RLock()
	readers := make(map[string]chain.Reader, len(m.readers))
	for id, r := range m.readers {
		readers[id] = r
	}
	m.mu.RUnlock()

	reports := make([]LagReport, 0, len(readers))
	for chainID, reader := range readers {
		report := LagReport{ChainID: chainID, Status: StatusHealthy}

		cursor, err := m.cursors.Get(ctx, chainID)
		if err != nil && !errors.Is(err, storage.ErrCursorNotFound) {
			report.Status = StatusCritical
			reports = append(reports, report)
			continue
		}
		if cursor != nil {
			report.CursorBlock = cursor.Block
		}

		latest, err := reader.LatestBlock(ctx)
		if err != nil {
			report.Status = StatusDegraded
			reports = append(reports, report)
			continue
		}
		report.LatestBlock = latest
		report.Lag = int64(latest) - int64(report.CursorBlock)

		switch {
		case report.Lag > DegradedLag*10:
			report.Status = StatusCritical
		case report.Lag > DegradedLag:
			report.Status = StatusDegraded
		}
		reports = append(reports, report)
	}
	return reports
}
