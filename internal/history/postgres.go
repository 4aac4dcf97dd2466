package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"edgeorch/internal/model"
	"edgeorch/pkg/database"
	"edgeorch/pkg/telemetry"
)

// PostgresRepository is the Postgres-backed Repository implementation.
type PostgresRepository struct {
	db database.DB
}

// NewPostgresRepository creates a new repository over an open DB.
func NewPostgresRepository(db database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Record(ctx context.Context, event model.AdaptationEvent) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRepository.Record")
	defer span.End()

	rec := toRecord(event)

	placementJSON, err := json.Marshal(rec.Placement)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal placement: %w", err)
	}
	pathJSON, err := json.Marshal(rec.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal path: %w", err)
	}

	query := `
		INSERT INTO adaptation_events (
			trigger, failed_node_ids, placement, degraded,
			path, path_feasible, duration_ms, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err = r.db.QueryRow(ctx, query,
		string(rec.Trigger),
		rec.FailedNodeIDs,
		placementJSON,
		rec.Degraded,
		pathJSON,
		rec.PathFeasible,
		rec.DurationMs,
		rec.OccurredAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to record adaptation event: %w", err)
	}

	return id, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Record, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRepository.GetByID")
	defer span.End()

	query := `
		SELECT id, trigger, failed_node_ids, placement, degraded,
			path, path_feasible, duration_ms, occurred_at
		FROM adaptation_events
		WHERE id = $1
	`

	rec := &Record{}
	var trigger string
	var placementJSON, pathJSON []byte

	err := r.db.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&trigger,
		&rec.FailedNodeIDs,
		&placementJSON,
		&rec.Degraded,
		&pathJSON,
		&rec.PathFeasible,
		&rec.DurationMs,
		&rec.OccurredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get adaptation event: %w", err)
	}
	rec.Trigger = model.AdaptationTrigger(trigger)

	if err := json.Unmarshal(placementJSON, &rec.Placement); err != nil {
		return nil, fmt.Errorf("failed to unmarshal placement: %w", err)
	}
	if err := json.Unmarshal(pathJSON, &rec.Path); err != nil {
		return nil, fmt.Errorf("failed to unmarshal path: %w", err)
	}

	return rec, nil
}

func (r *PostgresRepository) ListRecent(ctx context.Context, limit int, filter *ListFilter) ([]*Record, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRepository.ListRecent")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	where := "TRUE"
	args := []any{}
	argNum := 1

	if filter != nil {
		if filter.Trigger != "" {
			where += fmt.Sprintf(" AND trigger = $%d", argNum)
			args = append(args, string(filter.Trigger))
			argNum++
		}
		if filter.Since != nil {
			where += fmt.Sprintf(" AND occurred_at >= $%d", argNum)
			args = append(args, *filter.Since)
			argNum++
		}
		if filter.Until != nil {
			where += fmt.Sprintf(" AND occurred_at <= $%d", argNum)
			args = append(args, *filter.Until)
			argNum++
		}
	}

	query := fmt.Sprintf(`
		SELECT id, trigger, failed_node_ids, placement, degraded,
			path, path_feasible, duration_ms, occurred_at
		FROM adaptation_events
		WHERE %s
		ORDER BY occurred_at DESC
		LIMIT $%d
	`, where, argNum)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list adaptation events: %w", err)
	}
	defer rows.Close()

	var results []*Record
	for rows.Next() {
		rec := &Record{}
		var trigger string
		var placementJSON, pathJSON []byte

		if err := rows.Scan(
			&rec.ID,
			&trigger,
			&rec.FailedNodeIDs,
			&placementJSON,
			&rec.Degraded,
			&pathJSON,
			&rec.PathFeasible,
			&rec.DurationMs,
			&rec.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan adaptation event: %w", err)
		}
		rec.Trigger = model.AdaptationTrigger(trigger)

		if err := json.Unmarshal(placementJSON, &rec.Placement); err != nil {
			return nil, fmt.Errorf("failed to unmarshal placement: %w", err)
		}
		if err := json.Unmarshal(pathJSON, &rec.Path); err != nil {
			return nil, fmt.Errorf("failed to unmarshal path: %w", err)
		}

		results = append(results, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return results, nil
}
