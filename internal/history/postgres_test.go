package history

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgeorch/internal/model"
)

type pgxMockAdapter struct {
	mock pgxmock.PgxPoolIface
}

func (a *pgxMockAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return a.mock.Exec(ctx, sql, args...)
}

func (a *pgxMockAdapter) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return a.mock.Query(ctx, sql, args...)
}

func (a *pgxMockAdapter) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return a.mock.QueryRow(ctx, sql, args...)
}

func (a *pgxMockAdapter) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	return a.mock.BeginTx(ctx, txOptions)
}

func (a *pgxMockAdapter) Close() {
	a.mock.Close()
}

func (a *pgxMockAdapter) Ping(ctx context.Context) error {
	return a.mock.Ping(ctx)
}

func setupMockDB(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRepository) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	repo := NewPostgresRepository(&pgxMockAdapter{mock: mock})
	return mock, repo
}

func TestPostgresRepository_Record(t *testing.T) {
	mock, repo := setupMockDB(t)
	defer mock.Close()

	ctx := context.Background()
	event := model.AdaptationEvent{
		Trigger:       model.TriggerNodeFailure,
		FailedNodeIDs: []model.NodeID{3},
		Placement:     model.Placement{"svc-a": {1, 2}},
		Degraded:      false,
		Path:          model.InvocationPath{"svc-a": 1},
		PathFeasible:  true,
		Duration:      250 * time.Millisecond,
		OccurredAt:    time.Now(),
	}

	rows := pgxmock.NewRows([]string{"id"}).AddRow(int64(7))
	mock.ExpectQuery(`INSERT INTO adaptation_events`).WillReturnRows(rows)

	id, err := repo.Record(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetByID_NotFound(t *testing.T) {
	mock, repo := setupMockDB(t)
	defer mock.Close()

	ctx := context.Background()
	mock.ExpectQuery(`SELECT id, trigger`).WithArgs(int64(99)).WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(ctx, 99)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestPostgresRepository_GetByID_Found(t *testing.T) {
	mock, repo := setupMockDB(t)
	defer mock.Close()

	ctx := context.Background()
	now := time.Now()

	rows := pgxmock.NewRows([]string{
		"id", "trigger", "failed_node_ids", "placement", "degraded",
		"path", "path_feasible", "duration_ms", "occurred_at",
	}).AddRow(
		int64(1), "node_failure", []int64{3}, []byte(`{"svc-a":[1,2]}`), false,
		[]byte(`{"svc-a":1}`), true, int64(250), now,
	)
	mock.ExpectQuery(`SELECT id, trigger`).WithArgs(int64(1)).WillReturnRows(rows)

	rec, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID)
	assert.Equal(t, model.TriggerNodeFailure, rec.Trigger)
	assert.True(t, rec.PathFeasible)
}
