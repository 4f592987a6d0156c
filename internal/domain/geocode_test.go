package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- mock geocoder ---

type mockGeocoder struct {
	result GeocodingResult
	err    error
	calls  int
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (GeocodingResult, error) {
	m.calls++
	return m.result, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestEnrichWithGeocoding_NilGeocoder(t *testing.T) {
	inc := Incident{ID: "507756T", Lat: 32.786522, Lon: -96.802127}

	result := EnrichWithGeocoding(context.Background(), inc, nil, discardLogger())

	assert.Empty(t, result.GeoSource)
	assert.Empty(t, result.FormattedAddress)
}

func TestEnrichWithGeocoding_ReverseGeocode(t *testing.T) {
	geo := &mockGeocoder{
		result: GeocodingResult{
			FormattedAddress: "1818 North Akard Street, Dallas, Texas 75201",
			PlaceName:        "1818 North Akard Street",
			Confidence:       0.92,
		},
	}
	inc := Incident{ID: "507756T", Lat: 32.786522, Lon: -96.802127, Address: "1818 N Akard Street"}

	result := EnrichWithGeocoding(context.Background(), inc, geo, discardLogger())

	assert.Equal(t, "1818 North Akard Street, Dallas, Texas 75201", result.FormattedAddress)
	assert.Equal(t, "1818 North Akard Street", result.PlaceName)
	assert.Equal(t, 0.92, result.GeoConfidence)
	assert.Equal(t, GeoSourceReverse, result.GeoSource)
	assert.Equal(t, "1818 N Akard Street", result.Address, "source address is kept")
	assert.Equal(t, 1, geo.calls)
}

func TestEnrichWithGeocoding_Failure(t *testing.T) {
	geo := &mockGeocoder{err: errors.New("API timeout")}
	inc := Incident{ID: "507756T", Lat: 32.786522, Lon: -96.802127}

	result := EnrichWithGeocoding(context.Background(), inc, geo, discardLogger())

	assert.Equal(t, GeoSourceFailed, result.GeoSource)
	assert.Empty(t, result.FormattedAddress)
	assert.Equal(t, 32.786522, result.Lat, "coordinates unchanged on failure")
	assert.Equal(t, -96.802127, result.Lon)
}

func TestEnrichWithGeocoding_EmptyResult(t *testing.T) {
	geo := &mockGeocoder{}
	inc := Incident{ID: "507756T", Lat: 32.786522, Lon: -96.802127}

	result := EnrichWithGeocoding(context.Background(), inc, geo, discardLogger())

	assert.Equal(t, GeoSourceOriginal, result.GeoSource)
	assert.Empty(t, result.FormattedAddress)
}
