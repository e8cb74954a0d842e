package selection

import (
	"context"
	"errors"

	"github.com/wonny/krxvalue/internal/contracts"
	"github.com/wonny/krxvalue/pkg/logger"
)

// ArchiveReader reloads archived screening answers
type ArchiveReader interface {
	LoadScreeningResult(ctx context.Context, criteria contracts.Criteria) (*contracts.ScreeningResult, bool, error)
}

// ArchiveFallback serves the archived answer of the same criteria when the
// live screen cannot reach market data. Invalid input and cancellation are
// passed through untouched.
type ArchiveFallback struct {
	live    contracts.Screener
	archive ArchiveReader
	logger  *logger.Logger
}

var _ contracts.Screener = (*ArchiveFallback)(nil)

// NewArchiveFallback wraps live with an archive lookup
func NewArchiveFallback(live contracts.Screener, archive ArchiveReader, log *logger.Logger) *ArchiveFallback {
	return &ArchiveFallback{
		live:    live,
		archive: archive,
		logger:  log.Component("archive"),
	}
}

// Screen implements contracts.Screener
func (f *ArchiveFallback) Screen(ctx context.Context, criteria contracts.Criteria) (*contracts.ScreeningResult, error) {
	result, err := f.live.Screen(ctx, criteria)
	if err == nil || ctx.Err() != nil || !upstreamFailure(err) {
		return result, err
	}

	log := f.logger.WithField("criteria", criteria.Key())
	archived, found, archiveErr := f.archive.LoadScreeningResult(ctx, criteria)
	if archiveErr != nil {
		log.WithError(archiveErr).Warn("Archive lookup failed")
		return nil, err
	}
	if !found {
		return nil, err
	}

	log.WithError(err).Info("Serving archived screening result")
	archived.Archived = true
	return archived, nil
}

func upstreamFailure(err error) bool {
	return errors.Is(err, contracts.ErrGatewayFailure) || errors.Is(err, contracts.ErrNoDataAvailable)
}
