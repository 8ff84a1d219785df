package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/igor-bro/btc-cycle-timer/internal/models"
	_ "modernc.org/sqlite"
)

// SQLite is the file-backed Store.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/cycle-timer/data.db.
func NewSQLite(dbPath string) (*SQLite, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "cycle-timer", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS model_state (
			id         INTEGER PRIMARY KEY CHECK (id = 1),
			trained_at INTEGER NOT NULL,
			payload    TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS forecasts (
			id         TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			payload    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_forecasts_created_at ON forecasts(created_at)`,
		`CREATE TABLE IF NOT EXISTS accuracy_reports (
			id         TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			payload    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accuracy_reports_created_at ON accuracy_reports(created_at)`,
		`CREATE TABLE IF NOT EXISTS cycle_config (
			version    INTEGER PRIMARY KEY,
			updated_at INTEGER NOT NULL,
			payload    TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS last_phase (
			id    INTEGER PRIMARY KEY CHECK (id = 1),
			phase TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveModelState replaces the single persisted ensemble snapshot.
func (s *SQLite) SaveModelState(state *models.ModelState) error {
	if err := state.Validate(); err != nil {
		return &PersistenceError{Op: "save model state", Err: err}
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return &PersistenceError{Op: "save model state", Err: err}
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO model_state (id, trained_at, payload) VALUES (1, ?, ?)`,
		state.TrainedAt.UnixNano(), string(payload),
	)
	if err != nil {
		return &PersistenceError{Op: "save model state", Err: err}
	}
	return nil
}

func (s *SQLite) LoadModelState() (*models.ModelState, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM model_state WHERE id = 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load model state", Err: err}
	}
	var state models.ModelState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, &PersistenceError{Op: "load model state", Err: err}
	}
	return &state, nil
}

// AppendForecast adds one immutable forecast to the history.
func (s *SQLite) AppendForecast(rec *models.ForecastRecord) error {
	if err := rec.Validate(); err != nil {
		return &PersistenceError{Op: "append forecast", Err: err}
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return &PersistenceError{Op: "append forecast", Err: err}
	}
	_, err = s.db.Exec(
		`INSERT INTO forecasts (id, created_at, payload) VALUES (?, ?, ?)`,
		rec.ID, rec.CreatedAt.UnixNano(), string(payload),
	)
	if err != nil {
		return &PersistenceError{Op: "append forecast", Err: err}
	}
	return nil
}

// ListForecasts returns the forecast history ordered by creation time.
func (s *SQLite) ListForecasts() ([]models.ForecastRecord, error) {
	rows, err := s.db.Query(`SELECT payload FROM forecasts ORDER BY created_at ASC`)
	if err != nil {
		return nil, &PersistenceError{Op: "list forecasts", Err: err}
	}
	defer rows.Close()

	var out []models.ForecastRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, &PersistenceError{Op: "list forecasts", Err: err}
		}
		var rec models.ForecastRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, &PersistenceError{Op: "list forecasts", Err: err}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "list forecasts", Err: err}
	}
	return out, nil
}

func (s *SQLite) LatestForecast() (*models.ForecastRecord, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM forecasts ORDER BY created_at DESC LIMIT 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "latest forecast", Err: err}
	}
	var rec models.ForecastRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, &PersistenceError{Op: "latest forecast", Err: err}
	}
	return &rec, nil
}

func (s *SQLite) AppendAccuracyReport(rep *models.AccuracyReport) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return &PersistenceError{Op: "append accuracy report", Err: err}
	}
	_, err = s.db.Exec(
		`INSERT INTO accuracy_reports (id, created_at, payload) VALUES (?, ?, ?)`,
		rep.ID, rep.CreatedAt.UnixNano(), string(payload),
	)
	if err != nil {
		return &PersistenceError{Op: "append accuracy report", Err: err}
	}
	return nil
}

func (s *SQLite) ListAccuracyReports() ([]models.AccuracyReport, error) {
	rows, err := s.db.Query(`SELECT payload FROM accuracy_reports ORDER BY created_at ASC`)
	if err != nil {
		return nil, &PersistenceError{Op: "list accuracy reports", Err: err}
	}
	defer rows.Close()

	var out []models.AccuracyReport
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, &PersistenceError{Op: "list accuracy reports", Err: err}
		}
		var rep models.AccuracyReport
		if err := json.Unmarshal([]byte(payload), &rep); err != nil {
			return nil, &PersistenceError{Op: "list accuracy reports", Err: err}
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "list accuracy reports", Err: err}
	}
	return out, nil
}

// SaveCycleConfig appends one calendar version. Re-saving a version
// overwrites it; older versions stay readable.
func (s *SQLite) SaveCycleConfig(cc models.CycleConfig) error {
	if err := cc.Validate(); err != nil {
		return &PersistenceError{Op: "save cycle config", Err: err}
	}
	payload, err := json.Marshal(cc)
	if err != nil {
		return &PersistenceError{Op: "save cycle config", Err: err}
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO cycle_config (version, updated_at, payload) VALUES (?, ?, ?)`,
		cc.Version, cc.UpdatedAt.UnixNano(), string(payload),
	)
	if err != nil {
		return &PersistenceError{Op: "save cycle config", Err: err}
	}
	return nil
}

// LoadCycleConfig returns the highest stored calendar version.
func (s *SQLite) LoadCycleConfig() (*models.CycleConfig, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM cycle_config ORDER BY version DESC LIMIT 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load cycle config", Err: err}
	}
	var cc models.CycleConfig
	if err := json.Unmarshal([]byte(payload), &cc); err != nil {
		return nil, &PersistenceError{Op: "load cycle config", Err: err}
	}
	return &cc, nil
}

func (s *SQLite) SaveLastPhase(phase models.CyclePhase) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO last_phase (id, phase) VALUES (1, ?)`,
		string(phase),
	)
	if err != nil {
		return &PersistenceError{Op: "save last phase", Err: err}
	}
	return nil
}

func (s *SQLite) LoadLastPhase() (models.CyclePhase, error) {
	var phase string
	err := s.db.QueryRow(`SELECT phase FROM last_phase WHERE id = 1`).Scan(&phase)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", &PersistenceError{Op: "load last phase", Err: err}
	}
	return models.CyclePhase(phase), nil
}
