package selection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/krxvalue/internal/contracts"
)

// Repository archives screening results
// ⭐ SSOT: 스크리닝 결과 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new selection repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const createSelectionSchemaSQL = `
	CREATE SCHEMA IF NOT EXISTS selection;
	CREATE TABLE IF NOT EXISTS selection.screening_results (
		criteria_key   TEXT        PRIMARY KEY,
		market         VARCHAR(8)  NOT NULL,
		as_of          DATE        NOT NULL,
		total_joined   INT         NOT NULL,
		total_filtered INT         NOT NULL,
		total_final    INT         NOT NULL,
		resolution_log JSONB       NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS selection.ranking_results (
		criteria_key     TEXT        NOT NULL REFERENCES selection.screening_results (criteria_key) ON DELETE CASCADE,
		rank             INT         NOT NULL,
		stock_code       VARCHAR(12) NOT NULL,
		stock_name       TEXT        NOT NULL,
		market_cap       BIGINT      NOT NULL,
		per              DOUBLE PRECISION NOT NULL,
		pbr              DOUBLE PRECISION NOT NULL,
		div              DOUBLE PRECISION,
		total_score      DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (criteria_key, rank)
	);
`

// EnsureSchema creates the archive tables when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createSelectionSchemaSQL); err != nil {
		return fmt.Errorf("failed to create selection schema: %w", err)
	}
	return nil
}

// SaveScreeningResult replaces the archived answer of result.Criteria
func (r *Repository) SaveScreeningResult(ctx context.Context, result *contracts.ScreeningResult) error {
	logJSON, err := json.Marshal(result.ResolutionLog)
	if err != nil {
		return fmt.Errorf("failed to marshal resolution log: %w", err)
	}

	// Begin transaction
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	key := result.Criteria.Key()

	_, err = tx.Exec(ctx, `
		INSERT INTO selection.screening_results (
			criteria_key, market, as_of, total_joined, total_filtered, total_final, resolution_log
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (criteria_key) DO UPDATE SET
			as_of = EXCLUDED.as_of,
			total_joined = EXCLUDED.total_joined,
			total_filtered = EXCLUDED.total_filtered,
			total_final = EXCLUDED.total_final,
			resolution_log = EXCLUDED.resolution_log,
			created_at = NOW()
	`, key, string(result.Criteria.Market), result.AsOf,
		result.Stats.TotalJoined, result.Stats.Filtered, result.Stats.Final, logJSON)
	if err != nil {
		return fmt.Errorf("failed to save screening result: %w", err)
	}

	// Delete existing rows for the criteria
	if _, err := tx.Exec(ctx, "DELETE FROM selection.ranking_results WHERE criteria_key = $1", key); err != nil {
		return fmt.Errorf("failed to delete old results: %w", err)
	}

	query := `
		INSERT INTO selection.ranking_results (
			criteria_key, rank, stock_code, stock_name, market_cap, per, pbr, div, total_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, c := range result.Candidates {
		_, err := tx.Exec(ctx, query, key, c.Rank, c.Ticker, c.Name, c.MarketCap, c.PER, c.PBR, c.DIV, c.TotalScore)
		if err != nil {
			return fmt.Errorf("failed to insert ranking result: %w", err)
		}
	}

	// Commit transaction
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// LoadScreeningResult rebuilds the archived answer of criteria.
// found is false when the key was never archived.
func (r *Repository) LoadScreeningResult(ctx context.Context, criteria contracts.Criteria) (*contracts.ScreeningResult, bool, error) {
	key := criteria.Key()
	result := &contracts.ScreeningResult{Criteria: criteria}

	var logJSON []byte
	err := r.pool.QueryRow(ctx, `
		SELECT as_of, total_joined, total_filtered, total_final, resolution_log, created_at
		FROM selection.screening_results
		WHERE criteria_key = $1
	`, key).Scan(&result.AsOf, &result.Stats.TotalJoined, &result.Stats.Filtered, &result.Stats.Final, &logJSON, &result.ArchivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load screening result: %w", err)
	}
	if err := json.Unmarshal(logJSON, &result.ResolutionLog); err != nil {
		return nil, false, fmt.Errorf("failed to decode resolution log: %w", err)
	}

	if result.Candidates, err = r.GetRankingResults(ctx, key, criteria.TopN); err != nil {
		return nil, false, err
	}
	result.AsOf = contracts.Day(result.AsOf)
	return result, true, nil
}

// GetRankingResults returns the archived candidates of a criteria key in rank order.
// Contributions are recomputed from PER/PBR/DIV.
func (r *Repository) GetRankingResults(ctx context.Context, criteriaKey string, limit int) ([]contracts.ScoredCandidate, error) {
	query := `
		SELECT rank, stock_code, stock_name, market_cap, per, pbr, div
		FROM selection.ranking_results
		WHERE criteria_key = $1
		ORDER BY rank ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, criteriaKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranking results: %w", err)
	}
	defer rows.Close()

	results := make([]contracts.ScoredCandidate, 0)
	for rows.Next() {
		var c contracts.ScoredCandidate
		if err := rows.Scan(&c.Rank, &c.Ticker, &c.Name, &c.MarketCap, &c.PER, &c.PBR, &c.DIV); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		score(&c)
		results = append(results, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}

// HasResult reports whether criteriaKey has an archived answer
func (r *Repository) HasResult(ctx context.Context, criteriaKey string) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx,
		`SELECT 1 FROM selection.screening_results WHERE criteria_key = $1`, criteriaKey,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check screening result: %w", err)
	}
	return true, nil
}
