package http

import (
	"strings"

	"github.com/couchcryptid/ois-incident-etl/internal/domain"
)

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string            `json:"type"`
	Geometry   point             `json:"geometry"`
	Properties featureProperties `json:"properties"`
}

type point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// featureProperties carries what the map popup shows.
type featureProperties struct {
	CaseNumber string              `json:"case_number"`
	Date       string              `json:"date"`
	Outcome    string              `json:"outcome"`
	Class      domain.OutcomeClass `json:"class"`
	Weapon     string              `json:"weapon"`
	Officers   string              `json:"officers"`
	Address    string              `json:"address"`
	Formatted  string              `json:"formatted_address,omitempty"`
	Link       string              `json:"link,omitempty"`
	H3Cell     string              `json:"h3_cell,omitempty"`
}

func newFeatureCollection(incidents []domain.Incident) featureCollection {
	fc := featureCollection{Type: "FeatureCollection", Features: make([]feature, 0, len(incidents))}
	for _, inc := range incidents {
		fc.Features = append(fc.Features, feature{
			Type: "Feature",
			// GeoJSON positions are [lon, lat].
			Geometry: point{Type: "Point", Coordinates: [2]float64{inc.Lon, inc.Lat}},
			Properties: featureProperties{
				CaseNumber: inc.ID,
				Date:       inc.IncidentDate,
				Outcome:    inc.Outcome,
				Class:      inc.Class,
				Weapon:     inc.SubjectWeapon,
				Officers:   formatOfficers(inc.Officers),
				Address:    inc.Address,
				Formatted:  inc.FormattedAddress,
				Link:       inc.SummaryURL,
				H3Cell:     inc.H3Cell,
			},
		})
	}
	return fc
}

func formatOfficers(officers []domain.Officer) string {
	parts := make([]string, 0, len(officers))
	for _, o := range officers {
		if o.RaceGender == "" {
			parts = append(parts, o.Name)
			continue
		}
		parts = append(parts, o.Name+" ("+o.RaceGender+")")
	}
	return strings.Join(parts, "; ")
}
