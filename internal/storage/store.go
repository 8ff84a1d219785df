// Package storage persists model state, forecast history, accuracy
// reports, cycle-config versions, and the last observed phase.
package storage

import (
	"fmt"

	"github.com/igor-bro/btc-cycle-timer/internal/models"
)

// Store is the persistence port shared by the forecaster and monitor.
// Load methods return nil (or an empty phase) without error when
// nothing has been stored yet.
type Store interface {
	SaveModelState(state *models.ModelState) error
	LoadModelState() (*models.ModelState, error)

	AppendForecast(rec *models.ForecastRecord) error
	ListForecasts() ([]models.ForecastRecord, error)
	LatestForecast() (*models.ForecastRecord, error)

	AppendAccuracyReport(rep *models.AccuracyReport) error
	ListAccuracyReports() ([]models.AccuracyReport, error)

	SaveCycleConfig(cc models.CycleConfig) error
	LoadCycleConfig() (*models.CycleConfig, error)

	SaveLastPhase(phase models.CyclePhase) error
	LoadLastPhase() (models.CyclePhase, error)

	Close() error
}

// PersistenceError wraps a failed store operation with its name.
// Callers treat persistence failures as non-fatal: in-memory state is
// kept and a load failure never deletes anything on disk.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
