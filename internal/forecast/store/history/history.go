// Package history stores served predictions so recent results per sector can
// be listed.
package history

import (
	"context"

	"carboncast/internal/forecast/models"
	"carboncast/pkg/domain"
)

// Store appends and lists prediction records. ListRecent returns records
// newest first.
type Store interface {
	Append(ctx context.Context, rec models.PredictionRecord) error
	ListRecent(ctx context.Context, sector domain.Sector, limit int) ([]models.PredictionRecord, error)
}
