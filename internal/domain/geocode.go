package domain

import (
	"context"
	"log/slog"
)

// Values of Incident.GeoSource.
const (
	GeoSourceReverse  = "reverse"
	GeoSourceOriginal = "original"
	GeoSourceFailed   = "failed"
)

// EnrichWithGeocoding reverse geocodes the incident's coordinates. A nil
// geocoder leaves the incident untouched; a failed lookup is logged and
// recorded in GeoSource rather than returned.
func EnrichWithGeocoding(ctx context.Context, inc Incident, geocoder Geocoder, logger *slog.Logger) Incident {
	if geocoder == nil {
		return inc
	}

	result, err := geocoder.ReverseGeocode(ctx, inc.Lat, inc.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"case_number", inc.ID,
			"lat", inc.Lat,
			"lon", inc.Lon,
			"error", err,
		)
		inc.GeoSource = GeoSourceFailed
		return inc
	}
	if result.FormattedAddress == "" {
		inc.GeoSource = GeoSourceOriginal
		return inc
	}

	inc.FormattedAddress = result.FormattedAddress
	inc.PlaceName = result.PlaceName
	inc.GeoConfidence = result.Confidence
	inc.GeoSource = GeoSourceReverse
	return inc
}
