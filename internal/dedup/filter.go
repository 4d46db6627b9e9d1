package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/bidask-recorder/internal/model"
	"github.com/rickgao/bidask-recorder/internal/store"
)

// Reader is the transaction surface needed to compare snapshots.
type Reader interface {
	LatestRaw(ctx context.Context, assetID int64) (*model.OrderBookRaw, error)
}

// Writer adds the insert used by CreateIfChanged.
type Writer interface {
	Reader
	InsertRaw(ctx context.Context, raw *model.OrderBookRaw) error
}

// Filter compares incoming snapshots with the latest stored one.
type Filter struct {
	logger *slog.Logger
}

// NewFilter returns a Filter. A nil logger uses slog.Default.
func NewFilter(logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{logger: logger}
}

// IsDuplicate reports whether payload matches the asset's latest stored
// snapshot. It is false when nothing is stored yet.
func (f *Filter) IsDuplicate(ctx context.Context, r Reader, assetID int64, payload model.BookPayload) (bool, error) {
	latest, err := r.LatestRaw(ctx, assetID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	prev, err := latest.Payload()
	if err != nil {
		// An unreadable stored snapshot cannot match anything.
		f.logger.Warn("stored snapshot unreadable, treating as changed",
			"asset_id", assetID,
			"raw_id", latest.ID,
			"error", err,
		)
		return false, nil
	}
	return prev.Same(payload), nil
}

// CreateIfChanged stores payload as the asset's latest raw snapshot unless it
// is a duplicate. It returns whether a row was written, and the row.
// Callers run it inside their per-asset transaction.
func (f *Filter) CreateIfChanged(ctx context.Context, w Writer, assetID int64, channelUUID string, receivedAt time.Time, payload model.BookPayload) (bool, *model.OrderBookRaw, error) {
	dup, err := f.IsDuplicate(ctx, w, assetID, payload)
	if err != nil {
		return false, nil, fmt.Errorf("check duplicate: %w", err)
	}
	if dup {
		return false, nil, nil
	}

	raw := &model.OrderBookRaw{
		AssetID:     assetID,
		ChannelUUID: channelUUID,
		ReceivedAt:  receivedAt.UTC(),
		RawData:     payload.Raw,
	}
	if err := w.InsertRaw(ctx, raw); err != nil {
		return false, nil, err
	}
	return true, raw, nil
}
