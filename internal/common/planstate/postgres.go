package planstate

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"planscape-scenarios/internal/common/database"
	"planscape-scenarios/internal/common/errors"
	"planscape-scenarios/internal/common/logger"
	"planscape-scenarios/internal/models"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS plan_state (
	plan_id             TEXT PRIMARY KEY,
	scenario_id         TEXT NOT NULL DEFAULT '',
	condition_layer     TEXT NOT NULL DEFAULT '',
	project_area_shapes JSONB,
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

	ensureRowSQL = `INSERT INTO plan_state (plan_id) VALUES ($1) ON CONFLICT (plan_id) DO NOTHING`

	selectSQL = `SELECT plan_id, scenario_id, condition_layer, project_area_shapes, updated_at FROM plan_state WHERE plan_id = $1`

	updateScenarioSQL = `UPDATE plan_state SET scenario_id = $2, updated_at = NOW() WHERE plan_id = $1`
	updateLayerSQL    = `UPDATE plan_state SET condition_layer = $2, updated_at = NOW() WHERE plan_id = $1`
	updateShapesSQL   = `UPDATE plan_state SET project_area_shapes = $2, updated_at = NOW() WHERE plan_id = $1`
)

// PostgresStore persists plan state per plan id so a later session can
// re-attach to a running scenario.
type PostgresStore struct {
	db     *database.PostgresClient
	planID string
	logger logger.Logger
}

// NewPostgresStore ensures the table and the plan's row exist.
func NewPostgresStore(ctx context.Context, db *database.PostgresClient, planID string, log logger.Logger) (*PostgresStore, error) {
	s := &PostgresStore{
		db:     db,
		planID: planID,
		logger: logger.ForComponent(log, "planstate").WithFields(map[string]interface{}{"planId": planID}),
	}
	if _, err := db.Exec(ctx, createTableSQL); err != nil {
		return nil, errors.NewPlanStateFailedError("create_table", err)
	}
	if _, err := db.Exec(ctx, ensureRowSQL, planID); err != nil {
		return nil, errors.NewPlanStateFailedError("ensure_row", err)
	}
	return s, nil
}

func (s *PostgresStore) CurrentPlanID(ctx context.Context) (string, error) {
	return s.planID, nil
}

func (s *PostgresStore) CurrentScenarioID(ctx context.Context) (string, error) {
	state, err := s.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return state.CurrentScenarioID, nil
}

func (s *PostgresStore) SetCurrentScenarioID(ctx context.Context, scenarioID string) error {
	return s.exec(ctx, "set_scenario", updateScenarioSQL, scenarioID)
}

func (s *PostgresStore) SetConditionLayer(ctx context.Context, layer string) error {
	return s.exec(ctx, "set_condition_layer", updateLayerSQL, layer)
}

func (s *PostgresStore) SetProjectAreaShapes(ctx context.Context, shapes json.RawMessage) error {
	var arg interface{}
	if shapes != nil {
		arg = []byte(shapes)
	}
	return s.exec(ctx, "set_project_area_shapes", updateShapesSQL, arg)
}

func (s *PostgresStore) Snapshot(ctx context.Context) (models.PlanState, error) {
	var (
		state  models.PlanState
		shapes []byte
	)
	err := s.db.QueryRow(ctx, selectSQL, s.planID).Scan(
		&state.CurrentPlanID,
		&state.CurrentScenarioID,
		&state.ConditionLayer,
		&shapes,
		&state.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return models.PlanState{CurrentPlanID: s.planID}, nil
	}
	if err != nil {
		return models.PlanState{}, errors.NewPlanStateFailedError("snapshot", err)
	}
	if shapes != nil {
		state.ProjectAreaShapes = json.RawMessage(shapes)
	}
	return state, nil
}

func (s *PostgresStore) exec(ctx context.Context, op, query string, arg interface{}) error {
	res, err := s.db.Exec(ctx, query, s.planID, arg)
	if err != nil {
		s.logger.Error("Plan state update failed", map[string]interface{}{"operation": op, "error": err.Error()})
		return errors.NewPlanStateFailedError(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewPlanStateFailedError(op, fmt.Errorf("no plan_state row for plan %s", s.planID))
	}
	return nil
}
