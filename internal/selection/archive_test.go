package selection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/krxvalue/internal/contracts"
	"github.com/wonny/krxvalue/pkg/logger"
)

type stubScreener struct {
	result *contracts.ScreeningResult
	err    error
}

func (s stubScreener) Screen(ctx context.Context, criteria contracts.Criteria) (*contracts.ScreeningResult, error) {
	return s.result, s.err
}

type stubArchive struct {
	results map[string]*contracts.ScreeningResult
	err     error
	loads   int
}

func (s *stubArchive) LoadScreeningResult(ctx context.Context, criteria contracts.Criteria) (*contracts.ScreeningResult, bool, error) {
	s.loads++
	if s.err != nil {
		return nil, false, s.err
	}
	r, ok := s.results[criteria.Key()]
	return r, ok, nil
}

func TestArchiveFallback(t *testing.T) {
	c := criteria(nil)
	saved := &contracts.ScreeningResult{
		Criteria:   c,
		AsOf:       asOf,
		Candidates: []contracts.ScoredCandidate{{Rank: 1, Ticker: "A00001"}},
		ArchivedAt: time.Date(2026, 2, 13, 18, 31, 0, 0, time.UTC),
	}
	live := &contracts.ScreeningResult{Criteria: c, AsOf: asOf}
	noData := &contracts.NoDataError{Market: contracts.MarketKOSPI, WindowDays: 15}

	tests := []struct {
		name         string
		live         stubScreener
		archive      *stubArchive
		wantArchived bool
		wantErr      error
		wantLoads    int
	}{
		{"live success", stubScreener{result: live}, &stubArchive{}, false, nil, 0},
		{"no data served from archive", stubScreener{err: noData}, &stubArchive{results: map[string]*contracts.ScreeningResult{c.Key(): saved}}, true, nil, 1},
		{"gateway failure served from archive", stubScreener{err: contracts.ErrGatewayFailure}, &stubArchive{results: map[string]*contracts.ScreeningResult{c.Key(): saved}}, true, nil, 1},
		{"not archived", stubScreener{err: noData}, &stubArchive{}, false, contracts.ErrNoDataAvailable, 1},
		{"archive down", stubScreener{err: noData}, &stubArchive{err: errors.New("db down")}, false, contracts.ErrNoDataAvailable, 1},
		{"invalid parameter untouched", stubScreener{err: contracts.ErrInvalidParameter}, &stubArchive{}, false, contracts.ErrInvalidParameter, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := NewArchiveFallback(tt.live, tt.archive, logger.NewNop())

			got, err := fb.Screen(context.Background(), c)
			assert.Equal(t, tt.wantLoads, tt.archive.loads)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantArchived, got.Archived)
		})
	}
}

func TestArchiveFallback_CancelledSkipsArchive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	archive := &stubArchive{}
	fb := NewArchiveFallback(stubScreener{err: contracts.ErrGatewayFailure}, archive, logger.NewNop())

	_, err := fb.Screen(ctx, criteria(nil))
	assert.ErrorIs(t, err, contracts.ErrGatewayFailure)
	assert.Equal(t, 0, archive.loads)
}
