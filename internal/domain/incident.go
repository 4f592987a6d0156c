package domain

// Coordinates is a WGS84 position taken from a "(lat, lon)" parenthetical.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Location pairs the free-text street address with its coordinates.
type Location struct {
	Address     string      `json:"address"`
	Coordinates Coordinates `json:"coordinates"`
}

// IncidentRecord is one accepted row of the officer-involved shooting dataset.
// Every field except Location is kept verbatim from the source (trimmed and
// unquoted); no normalization happens at this stage.
type IncidentRecord struct {
	CaseNumber           string   `json:"case_number"`
	Date                 string   `json:"date"`
	Outcome              string   `json:"outcome"`
	SubjectWeapon        string   `json:"subject_weapon"`
	Officers             string   `json:"officers"`
	GrandJuryDisposition string   `json:"grand_jury_disposition"`
	ReferenceURLs        []string `json:"reference_urls"`
	Location             Location `json:"location"`
}

// PrimaryURL returns the most specific reference link (the case summary when
// both columns are present), or "" when the row has none.
func (r IncidentRecord) PrimaryURL() string {
	if len(r.ReferenceURLs) == 0 {
		return ""
	}
	return r.ReferenceURLs[len(r.ReferenceURLs)-1]
}

// RejectReason classifies why a row was dropped.
type RejectReason string

const (
	RejectTooFewFields       RejectReason = "too_few_fields"
	RejectMissingCoordinates RejectReason = "missing_coordinates"
	RejectInvalidCoordinates RejectReason = "invalid_coordinates"
	RejectEmptyCaseNumber    RejectReason = "empty_case_number"
)

// MaxRetainedRejections caps how many individual rejections a summary keeps.
const MaxRetainedRejections = 20

// Rejection describes a single dropped row.
type Rejection struct {
	Record     int          `json:"record"` // 1-based logical record number, header included
	CaseNumber string       `json:"case_number,omitempty"`
	Reason     RejectReason `json:"reason"`
	Detail     string       `json:"detail"`
}

// ExtractSummary reports what happened to every non-header record of an input.
type ExtractSummary struct {
	Seen       int                  `json:"seen"`
	Accepted   int                  `json:"accepted"`
	Rejected   int                  `json:"rejected"`
	Duplicates int                  `json:"duplicates"`
	Reasons    map[RejectReason]int `json:"reasons"`
	Rejections []Rejection          `json:"rejections"`
}

func (s *ExtractSummary) reject(rej Rejection) {
	s.Rejected++
	if s.Reasons == nil {
		s.Reasons = make(map[RejectReason]int)
	}
	s.Reasons[rej.Reason]++
	if len(s.Rejections) < MaxRetainedRejections {
		s.Rejections = append(s.Rejections, rej)
	}
}
