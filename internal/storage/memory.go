package storage

import (
	"sort"
	"sync"

	"github.com/igor-bro/btc-cycle-timer/internal/models"
)

// Memory is an in-memory Store for tests and dry runs. It mirrors the
// SQLite semantics: loads on an empty store return nil without error.
type Memory struct {
	mu        sync.RWMutex
	state     *models.ModelState
	forecasts []models.ForecastRecord
	reports   []models.AccuracyReport
	configs   map[int]models.CycleConfig
	phase     models.CyclePhase
}

func NewMemory() *Memory {
	return &Memory{configs: make(map[int]models.CycleConfig)}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) SaveModelState(state *models.ModelState) error {
	if err := state.Validate(); err != nil {
		return &PersistenceError{Op: "save model state", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st := *state
	m.state = &st
	return nil
}

func (m *Memory) LoadModelState() (*models.ModelState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return nil, nil
	}
	st := *m.state
	return &st, nil
}

func (m *Memory) AppendForecast(rec *models.ForecastRecord) error {
	if err := rec.Validate(); err != nil {
		return &PersistenceError{Op: "append forecast", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forecasts = append(m.forecasts, *rec)
	return nil
}

func (m *Memory) ListForecasts() ([]models.ForecastRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]models.ForecastRecord(nil), m.forecasts...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) LatestForecast() (*models.ForecastRecord, error) {
	list, err := m.ListForecasts()
	if err != nil || len(list) == 0 {
		return nil, err
	}
	rec := list[len(list)-1]
	return &rec, nil
}

func (m *Memory) AppendAccuracyReport(rep *models.AccuracyReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, *rep)
	return nil
}

func (m *Memory) ListAccuracyReports() ([]models.AccuracyReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]models.AccuracyReport(nil), m.reports...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) SaveCycleConfig(cc models.CycleConfig) error {
	if err := cc.Validate(); err != nil {
		return &PersistenceError{Op: "save cycle config", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cc.Version] = cc
	return nil
}

func (m *Memory) LoadCycleConfig() (*models.CycleConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	latest := 0
	for v := range m.configs {
		if v > latest {
			latest = v
		}
	}
	if latest == 0 {
		return nil, nil
	}
	cc := m.configs[latest]
	return &cc, nil
}

func (m *Memory) SaveLastPhase(phase models.CyclePhase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = phase
	return nil
}

func (m *Memory) LoadLastPhase() (models.CyclePhase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase, nil
}
