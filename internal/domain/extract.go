package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// leadingFields is the number of positional columns before the location.
	leadingFields = 8
	minFields     = leadingFields + 1
)

// Column positions of the leading fields.
const (
	colCaseNumber = iota
	colDate
	colOutcome
	colWeapon
	colOfficers
	colDisposition
	colAGFormsURL
	colSummaryURL
)

// Parse returns the accepted records of raw, in input order.
func Parse(raw string) []IncidentRecord {
	records, _ := Extract(raw)
	return records
}

// Extract parses raw delimited text into incident records. The first non-blank
// logical record is treated as the header and dropped; blank records are
// skipped without being counted. Malformed rows never fail the call, they are
// tallied in the returned summary instead.
//
// A coordinate pair only counts when both values are finite and within
// |lat| <= 90 and |lon| <= 180. A row whose pairs all fall outside that range
// is rejected as invalid_coordinates rather than missing_coordinates.
func Extract(raw string) ([]IncidentRecord, ExtractSummary) {
	records := make([]IncidentRecord, 0)
	summary := ExtractSummary{Reasons: make(map[RejectReason]int)}
	cases := make(map[string]struct{})

	scanner := newRecordScanner(raw)
	ordinal := 0
	for {
		text, ok := scanner.next()
		if !ok {
			break
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		ordinal++
		if ordinal == 1 {
			continue
		}

		summary.Seen++
		rec, rej := parseRecord(text)
		if rej != nil {
			rej.Record = ordinal
			summary.reject(*rej)
			continue
		}

		if _, dup := cases[rec.CaseNumber]; dup {
			summary.Duplicates++
		}
		cases[rec.CaseNumber] = struct{}{}

		summary.Accepted++
		records = append(records, rec)
	}
	return records, summary
}

func parseRecord(text string) (IncidentRecord, *Rejection) {
	fields := splitFields(text)
	if len(fields) < minFields {
		return IncidentRecord{}, &Rejection{
			CaseNumber: fields[colCaseNumber],
			Reason:     RejectTooFewFields,
			Detail:     fmt.Sprintf("got %d fields, need at least %d", len(fields), minFields),
		}
	}

	caseNumber := fields[colCaseNumber]
	location := strings.Join(fields[leadingFields:], ", ")

	coords, start, reason := findCoordinates(location)
	if reason != "" {
		detail := "no (lat, lon) pair in location"
		if reason == RejectInvalidCoordinates {
			detail = "no coordinate pair within lat [-90, 90] and lon [-180, 180]"
		}
		return IncidentRecord{}, &Rejection{CaseNumber: caseNumber, Reason: reason, Detail: detail}
	}

	if caseNumber == "" {
		return IncidentRecord{}, &Rejection{Reason: RejectEmptyCaseNumber, Detail: "case number is blank"}
	}

	return IncidentRecord{
		CaseNumber:           caseNumber,
		Date:                 fields[colDate],
		Outcome:              fields[colOutcome],
		SubjectWeapon:        fields[colWeapon],
		Officers:             fields[colOfficers],
		GrandJuryDisposition: fields[colDisposition],
		ReferenceURLs:        referenceURLs(fields[colAGFormsURL], fields[colSummaryURL]),
		Location: Location{
			Address:     extractAddress(location[:start]),
			Coordinates: coords,
		},
	}, nil
}

// findCoordinates returns the last in-range coordinate pair in text and the
// offset where its parenthetical starts. When none qualifies, reason says
// whether any pair was present at all.
func findCoordinates(text string) (Coordinates, int, RejectReason) {
	matches := coordPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return Coordinates{}, 0, RejectMissingCoordinates
	}
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		lat, latOK := parseCoordinate(text[m[2]:m[3]], 90)
		lon, lonOK := parseCoordinate(text[m[4]:m[5]], 180)
		if latOK && lonOK {
			return Coordinates{Lat: lat, Lon: lon}, m[0], ""
		}
	}
	return Coordinates{}, 0, RejectInvalidCoordinates
}

func parseCoordinate(s string, limit float64) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, math.Abs(v) <= limit
}

// extractAddress takes the first non-empty line before the coordinates.
func extractAddress(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.ReplaceAll(line, `"`, ""))
		line = strings.TrimRight(line, ",; \t")
		if line != "" {
			return line
		}
	}
	return ""
}

func referenceURLs(values ...string) []string {
	var urls []string
	for _, v := range values {
		if v == "" || strings.EqualFold(v, "N/A") {
			continue
		}
		urls = append(urls, v)
	}
	return urls
}
