package selection

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/krxvalue/internal/contracts"
)

func TestRepository_SaveAndLoad(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	repo := NewRepository(pool)
	require.NoError(t, repo.EnsureSchema(ctx))

	c := criteria(func(c *contracts.Criteria) { c.TopN = 2 })
	first := contracts.ScoredCandidate{Rank: 1, Ticker: "A00001", Name: "하나", MarketCap: 600_000_000_000, PER: 5, PBR: 0.5, DIV: f(3)}
	second := contracts.ScoredCandidate{Rank: 2, Ticker: "A00002", Name: "둘", MarketCap: 700_000_000_000, PER: 10, PBR: 1}
	score(&first)
	score(&second)

	result := &contracts.ScreeningResult{
		Criteria:      c,
		Candidates:    []contracts.ScoredCandidate{first, second},
		AsOf:          asOf,
		Stats:         contracts.ScreenStats{TotalJoined: 5, Filtered: 2, Final: 2},
		ResolutionLog: []string{"20260213: used requested date"},
	}

	require.NoError(t, repo.SaveScreeningResult(ctx, result))
	// Saving twice replaces rows
	require.NoError(t, repo.SaveScreeningResult(ctx, result))

	ok, err := repo.HasResult(ctx, c.Key())
	require.NoError(t, err)
	assert.True(t, ok)

	rows, err := repo.GetRankingResults(ctx, c.Key(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A00001", rows[0].Ticker)
	assert.InDelta(t, first.TotalScore, rows[0].TotalScore, 1e-9)
	assert.Nil(t, rows[1].DIV)

	loaded, found, err := repo.LoadScreeningResult(ctx, c)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, asOf, loaded.AsOf)
	assert.Equal(t, result.Stats, loaded.Stats)
	assert.Equal(t, result.ResolutionLog, loaded.ResolutionLog)
	assert.Len(t, loaded.Candidates, 2)
	assert.False(t, loaded.ArchivedAt.IsZero())

	_, found, err = repo.LoadScreeningResult(ctx, criteria(func(c *contracts.Criteria) { c.TopN = 3 }))
	require.NoError(t, err)
	assert.False(t, found)

	ok, err = repo.HasResult(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
