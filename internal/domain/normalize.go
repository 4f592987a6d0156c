package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/uber/h3-go/v4"
)

// OutcomeClass is the closed set of incident outcomes used by storage.
type OutcomeClass string

const (
	OutcomeFatal          OutcomeClass = "fatal"
	OutcomeNonFatal       OutcomeClass = "non_fatal"
	OutcomeShotFiredNoHit OutcomeClass = "shot_fired_no_hit"
)

// DefaultH3Resolution is roughly city-block sized.
const DefaultH3Resolution = 9

// Officer is one entry of the semicolon-joined officers column.
type Officer struct {
	Name       string `json:"name"`
	RaceGender string `json:"race_gender,omitempty"`
}

// Incident is the normalized, storage-ready form of an IncidentRecord.
type Incident struct {
	ID            string       `json:"id"`
	IncidentDate  string       `json:"incident_date"`
	Outcome       string       `json:"outcome"`
	Class         OutcomeClass `json:"class"`
	SubjectWeapon string       `json:"subject_weapon"`
	Weapons       []string     `json:"weapons"`
	Officers      []Officer    `json:"officers"`
	Disposition   *string      `json:"grand_jury_disposition"`
	AGFormsURL    string       `json:"ag_forms_url,omitempty"`
	SummaryURL    string       `json:"summary_url,omitempty"`
	Address       string       `json:"address"`
	Lat           float64      `json:"lat"`
	Lon           float64      `json:"lon"`
	H3Cell        string       `json:"h3_cell,omitempty"`

	// Geocoding enrichment, empty when disabled.
	FormattedAddress string  `json:"formatted_address,omitempty"`
	PlaceName        string  `json:"place_name,omitempty"`
	GeoConfidence    float64 `json:"geo_confidence,omitempty"`
	GeoSource        string  `json:"geo_source,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// NormalizeIncident maps a parsed record onto the storage shape. The H3 cell
// is computed at resolution res; an invalid resolution leaves it empty.
func NormalizeIncident(rec IncidentRecord, res int) Incident {
	inc := Incident{
		ID:            rec.CaseNumber,
		IncidentDate:  ISODate(rec.Date),
		Outcome:       rec.Outcome,
		Class:         ClassifyOutcome(rec.Outcome),
		SubjectWeapon: rec.SubjectWeapon,
		Weapons:       SplitWeapons(rec.SubjectWeapon),
		Officers:      ParseOfficers(rec.Officers),
		Disposition:   nullable(rec.GrandJuryDisposition),
		SummaryURL:    rec.PrimaryURL(),
		Address:       rec.Location.Address,
		Lat:           rec.Location.Coordinates.Lat,
		Lon:           rec.Location.Coordinates.Lon,
		ProcessedAt:   clock.Now().UTC(),
	}
	if len(rec.ReferenceURLs) > 1 {
		inc.AGFormsURL = rec.ReferenceURLs[0]
	}
	if cell, err := H3Cell(inc.Lat, inc.Lon, res); err == nil {
		inc.H3Cell = cell
	}
	return inc
}

// ClassifyOutcome maps free-text outcome onto OutcomeClass by keyword.
func ClassifyOutcome(outcome string) OutcomeClass {
	lower := strings.ToLower(outcome)
	switch {
	case strings.Contains(lower, "deceased"):
		return OutcomeFatal
	case strings.Contains(lower, "injured"):
		return OutcomeNonFatal
	default:
		return OutcomeShotFiredNoHit
	}
}

var (
	officerParen = regexp.MustCompile(`^(.*?)\s*\(([^()]*)\)\s*$`)
	officerBare  = regexp.MustCompile(`^(.*\S)\s+([A-Za-z]+/[A-Za-z]+)$`)
)

// ParseOfficers splits "Name (Race/Gender); Name (Race/Gender)" into entries.
// A trailing bare "W/M" token is accepted in place of the parenthetical.
func ParseOfficers(officers string) []Officer {
	var out []Officer
	for _, part := range strings.Split(officers, ";") {
		part = strings.TrimSpace(part)
		if part == "" || strings.EqualFold(part, "N/A") {
			continue
		}
		if m := officerParen.FindStringSubmatch(part); m != nil {
			out = append(out, Officer{Name: strings.TrimSpace(m[1]), RaceGender: strings.TrimSpace(m[2])})
			continue
		}
		if m := officerBare.FindStringSubmatch(part); m != nil {
			out = append(out, Officer{Name: strings.TrimRight(m[1], ", "), RaceGender: m[2]})
			continue
		}
		out = append(out, Officer{Name: part})
	}
	return out
}

// SplitWeapons splits the subject weapon column on ';'.
func SplitWeapons(weapon string) []string {
	var out []string
	for _, w := range strings.Split(weapon, ";") {
		w = strings.TrimSpace(w)
		if w == "" || strings.EqualFold(w, "N/A") {
			continue
		}
		out = append(out, w)
	}
	return out
}

// ISODate converts MM/DD/YYYY to YYYY-MM-DD, returning the input unchanged
// when it does not parse.
func ISODate(date string) string {
	t, err := time.Parse("1/2/2006", strings.TrimSpace(date))
	if err != nil {
		return date
	}
	return t.Format(time.DateOnly)
}

// H3Cell returns the hex index of the H3 cell containing (lat, lon).
func H3Cell(lat, lon float64, res int) (string, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), res)
	if err != nil {
		return "", fmt.Errorf("h3 cell at res %d: %w", res, err)
	}
	return cell.String(), nil
}

func nullable(s string) *string {
	if s == "" || strings.EqualFold(s, "N/A") {
		return nil
	}
	return &s
}
