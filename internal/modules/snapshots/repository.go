// Package snapshots persists run outputs as flat tabular snapshots:
// risk scores, feature importances, allocations, and assignments, keyed
// by run id. Nothing else is persisted across runs.
package snapshots

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aedworks/coverplan/internal/database"
	"github.com/aedworks/coverplan/internal/domain"
	"github.com/aedworks/coverplan/internal/modules/risk"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id      TEXT PRIMARY KEY,
    created_at  TEXT NOT NULL,
    total_units INTEGER NOT NULL,
    zones       INTEGER NOT NULL,
    responders  INTEGER NOT NULL,
    objective   REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS risk_scores (
    run_id          TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    zone_code       TEXT NOT NULL,
    zone_name       TEXT NOT NULL,
    planning_area   TEXT NOT NULL,
    risk_score      REAL NOT NULL,
    priority_weight REAL NOT NULL,
    PRIMARY KEY (run_id, zone_code)
);

CREATE TABLE IF NOT EXISTS feature_importance (
    run_id  TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    feature TEXT NOT NULL,
    weight  REAL NOT NULL,
    PRIMARY KEY (run_id, feature)
);

CREATE TABLE IF NOT EXISTS allocations (
    run_id      TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    zone_code   TEXT NOT NULL,
    prior_count INTEGER NOT NULL,
    allocated   INTEGER NOT NULL,
    delta       INTEGER NOT NULL,
    PRIMARY KEY (run_id, zone_code)
);

CREATE TABLE IF NOT EXISTS assignments (
    run_id        TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    responder_id  TEXT NOT NULL,
    zone_code     TEXT,
    distance_m    REAL,
    response_time REAL NOT NULL,
    weight        REAL,
    PRIMARY KEY (run_id, responder_id)
);
`

// RunSummary is one row of the runs table.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	CreatedAt  time.Time `json:"created_at"`
	TotalUnits int       `json:"total_units"`
	Zones      int       `json:"zones"`
	Responders int       `json:"responders"`
	Objective  float64   `json:"objective"`
}

// ZoneRisk is one persisted risk score row.
type ZoneRisk struct {
	ZoneCode       string  `json:"zone_code"`
	ZoneName       string  `json:"zone_name"`
	PlanningArea   string  `json:"planning_area"`
	RiskScore      float64 `json:"risk_score"`
	PriorityWeight float64 `json:"priority_weight"`
}

// ZoneAllocation is one persisted allocation row.
type ZoneAllocation struct {
	ZoneCode  string `json:"zone_code"`
	Prior     int    `json:"prior"`
	Allocated int    `json:"allocated"`
	Delta     int    `json:"delta"`
}

// ResponderAssignment is one persisted assignment row. ZoneCode is nil
// for responders that remained unassigned.
type ResponderAssignment struct {
	ResponderID  string   `json:"responder_id"`
	ZoneCode     *string  `json:"zone_code"`
	Distance     *float64 `json:"distance_m"`
	ResponseTime float64  `json:"response_time"`
	Weight       *float64 `json:"weight"`
}

// Repository handles snapshot persistence.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a snapshot repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// Migrate creates the snapshot tables.
func (r *Repository) Migrate() error {
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("create snapshot tables: %w", err)
	}
	return nil
}

// SaveRun persists one complete run atomically.
func (r *Repository) SaveRun(
	summary RunSummary,
	zones []domain.Zone,
	importance []risk.Importance,
	inv domain.DeviceInventory,
	res *domain.AssignmentResult,
) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO runs (run_id, created_at, total_units, zones, responders, objective)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			summary.RunID, summary.CreatedAt.UTC().Format(time.RFC3339Nano),
			summary.TotalUnits, summary.Zones, summary.Responders, summary.Objective,
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for _, z := range zones {
			if _, err := tx.Exec(
				`INSERT INTO risk_scores (run_id, zone_code, zone_name, planning_area, risk_score, priority_weight)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				summary.RunID, z.Code, z.Name, z.PlanningArea, z.RiskScore, z.PriorityWeight,
			); err != nil {
				return fmt.Errorf("insert risk score for zone %s: %w", z.Code, err)
			}
			if _, err := tx.Exec(
				`INSERT INTO allocations (run_id, zone_code, prior_count, allocated, delta)
				 VALUES (?, ?, ?, ?, ?)`,
				summary.RunID, z.Code, inv.Prior[z.Code], inv.Assigned[z.Code],
				inv.Assigned[z.Code]-inv.Prior[z.Code],
			); err != nil {
				return fmt.Errorf("insert allocation for zone %s: %w", z.Code, err)
			}
		}

		for _, imp := range importance {
			if _, err := tx.Exec(
				`INSERT INTO feature_importance (run_id, feature, weight) VALUES (?, ?, ?)`,
				summary.RunID, imp.Feature, imp.Weight,
			); err != nil {
				return fmt.Errorf("insert importance for %s: %w", imp.Feature, err)
			}
		}

		if res != nil {
			for _, a := range res.Assignments {
				if _, err := tx.Exec(
					`INSERT INTO assignments (run_id, responder_id, zone_code, distance_m, response_time, weight)
					 VALUES (?, ?, ?, ?, ?, ?)`,
					summary.RunID, a.ResponderID, a.ZoneCode, a.Distance, a.ResponseTime, a.Weight,
				); err != nil {
					return fmt.Errorf("insert assignment for responder %s: %w", a.ResponderID, err)
				}
			}
			for _, id := range res.Unassigned {
				if _, err := tx.Exec(
					`INSERT INTO assignments (run_id, responder_id, zone_code, distance_m, response_time, weight)
					 VALUES (?, ?, NULL, NULL, 0, NULL)`,
					summary.RunID, id,
				); err != nil {
					return fmt.Errorf("insert unassigned responder %s: %w", id, err)
				}
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info().
		Str("run_id", summary.RunID).
		Int("zones", summary.Zones).
		Int("responders", summary.Responders).
		Msg("Run snapshot saved")

	return nil
}

// LatestRun returns the most recent run summary, or sql.ErrNoRows when
// no run has been persisted yet.
func (r *Repository) LatestRun() (*RunSummary, error) {
	row := r.db.QueryRow(
		`SELECT run_id, created_at, total_units, zones, responders, objective
		 FROM runs ORDER BY created_at DESC LIMIT 1`)

	var s RunSummary
	var createdAt string
	if err := row.Scan(&s.RunID, &createdAt, &s.TotalUnits, &s.Zones, &s.Responders, &s.Objective); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse run timestamp: %w", err)
	}
	s.CreatedAt = t
	return &s, nil
}

// RiskScores returns the persisted per-zone risk rows for a run.
func (r *Repository) RiskScores(runID string) ([]ZoneRisk, error) {
	rows, err := r.db.Query(
		`SELECT zone_code, zone_name, planning_area, risk_score, priority_weight
		 FROM risk_scores WHERE run_id = ? ORDER BY zone_code`, runID)
	if err != nil {
		return nil, fmt.Errorf("query risk scores: %w", err)
	}
	defer rows.Close()

	var out []ZoneRisk
	for rows.Next() {
		var z ZoneRisk
		if err := rows.Scan(&z.ZoneCode, &z.ZoneName, &z.PlanningArea, &z.RiskScore, &z.PriorityWeight); err != nil {
			return nil, fmt.Errorf("scan risk score: %w", err)
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

// Allocations returns the persisted allocation rows for a run.
func (r *Repository) Allocations(runID string) ([]ZoneAllocation, error) {
	rows, err := r.db.Query(
		`SELECT zone_code, prior_count, allocated, delta
		 FROM allocations WHERE run_id = ? ORDER BY zone_code`, runID)
	if err != nil {
		return nil, fmt.Errorf("query allocations: %w", err)
	}
	defer rows.Close()

	var out []ZoneAllocation
	for rows.Next() {
		var a ZoneAllocation
		if err := rows.Scan(&a.ZoneCode, &a.Prior, &a.Allocated, &a.Delta); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Assignments returns the persisted assignment rows for a run, including
// unassigned responders (NULL zone).
func (r *Repository) Assignments(runID string) ([]ResponderAssignment, error) {
	rows, err := r.db.Query(
		`SELECT responder_id, zone_code, distance_m, response_time, weight
		 FROM assignments WHERE run_id = ? ORDER BY responder_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	var out []ResponderAssignment
	for rows.Next() {
		var a ResponderAssignment
		if err := rows.Scan(&a.ResponderID, &a.ZoneCode, &a.Distance, &a.ResponseTime, &a.Weight); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FeatureImportance returns the persisted importance ranking for a run.
func (r *Repository) FeatureImportance(runID string) ([]risk.Importance, error) {
	rows, err := r.db.Query(
		`SELECT feature, weight FROM feature_importance
		 WHERE run_id = ? ORDER BY weight DESC, feature`, runID)
	if err != nil {
		return nil, fmt.Errorf("query feature importance: %w", err)
	}
	defer rows.Close()

	var out []risk.Importance
	for rows.Next() {
		var imp risk.Importance
		if err := rows.Scan(&imp.Feature, &imp.Weight); err != nil {
			return nil, fmt.Errorf("scan feature importance: %w", err)
		}
		out = append(out, imp)
	}
	return out, rows.Err()
}
