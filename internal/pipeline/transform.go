package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/ois-incident-etl/internal/domain"
)

// IncidentTransformer implements Transformer using domain normalization
// with optional geocoding enrichment.
type IncidentTransformer struct {
	geocoder     domain.Geocoder
	h3Resolution int
	logger       *slog.Logger
}

// NewTransformer creates an IncidentTransformer. Pass a nil geocoder to disable
// geocoding enrichment.
func NewTransformer(geocoder domain.Geocoder, h3Resolution int, logger *slog.Logger) *IncidentTransformer {
	return &IncidentTransformer{
		geocoder:     geocoder,
		h3Resolution: h3Resolution,
		logger:       logger,
	}
}

func (t *IncidentTransformer) Transform(ctx context.Context, rec domain.IncidentRecord) (domain.Incident, error) {
	if err := ctx.Err(); err != nil {
		return domain.Incident{}, err
	}
	inc := domain.NormalizeIncident(rec, t.h3Resolution)
	return domain.EnrichWithGeocoding(ctx, inc, t.geocoder, t.logger), nil
}
