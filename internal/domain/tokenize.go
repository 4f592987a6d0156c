package domain

import (
	"regexp"
	"strings"
)

const (
	numberPattern = `[-+]?(?:\d+\.?\d*|\.\d+)`
	pairPattern   = `\(\s*(` + numberPattern + `)\s*,\s*(` + numberPattern + `)\s*\)`
)

var (
	coordPattern = regexp.MustCompile(pairPattern)

	// lineEndsWithPair matches a physical line whose last token is a
	// coordinate parenthetical, optionally followed by closing quotes.
	lineEndsWithPair = regexp.MustCompile(pairPattern + `["\s]*$`)
)

// recordScanner walks raw text one logical record at a time, a physical line
// at a time. Two rules join lines into one record:
//
//   - A line break inside an open quoted span stays in the current record.
//     When the line already ends with a coordinate pair, the record closes
//     there unless a quote still appears before the next row starts, so one
//     unbalanced quote cannot consume the rest of the input.
//   - A complete but unquoted row whose location has no coordinate pair takes
//     in following lines up to the first one ending in a pair, provided no
//     new row or blank line comes first.
type recordScanner struct {
	lines []string
	pos   int
}

func newRecordScanner(raw string) *recordScanner {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	lines := strings.Split(raw, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return &recordScanner{lines: lines}
}

// next returns the next logical record, or false once the input is exhausted.
func (s *recordScanner) next() (string, bool) {
	if s.pos >= len(s.lines) {
		return "", false
	}

	var b strings.Builder
	inQuote := false
	for {
		line := s.lines[s.pos]
		s.pos++
		b.WriteString(line)
		if strings.Count(line, `"`)%2 == 1 {
			inQuote = !inQuote
		}
		if s.pos >= len(s.lines) || !s.continues(b.String(), line, inQuote) {
			return b.String(), true
		}
		b.WriteByte('\n')
	}
}

func (s *recordScanner) continues(record, line string, inQuote bool) bool {
	if inQuote {
		return !lineEndsWithPair.MatchString(line) || s.quoteAhead()
	}
	return lacksCoordinates(record) && s.pairLineAhead()
}

// quoteAhead reports whether a quote appears before the next row start.
func (s *recordScanner) quoteAhead() bool {
	for _, line := range s.lines[s.pos:] {
		if isRowStart(line) {
			return false
		}
		if strings.Contains(line, `"`) {
			return true
		}
	}
	return false
}

// pairLineAhead reports whether a line ending in a coordinate pair follows
// before the next row start or blank line.
func (s *recordScanner) pairLineAhead() bool {
	for _, line := range s.lines[s.pos:] {
		if strings.TrimSpace(line) == "" || isRowStart(line) {
			return false
		}
		if lineEndsWithPair.MatchString(line) {
			return true
		}
	}
	return false
}

// isRowStart reports whether line carries every leading column separator.
// Quotes are ignored so a row with a stray quote still counts.
func isRowStart(line string) bool {
	return strings.Count(line, ",") >= leadingFields
}

// lacksCoordinates reports whether record has all columns but no pair in its
// location yet.
func lacksCoordinates(record string) bool {
	fields := splitFields(record)
	if len(fields) < minFields {
		return false
	}
	return !coordPattern.MatchString(strings.Join(fields[leadingFields:], ", "))
}

// splitFields splits a logical record on commas that sit outside quotes.
func splitFields(record string) []string {
	var (
		fields  []string
		b       strings.Builder
		inQuote bool
	)
	for i := 0; i < len(record); i++ {
		c := record[i]
		switch {
		case c == '"':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == ',' && !inQuote:
			fields = append(fields, cleanField(b.String()))
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	return append(fields, cleanField(b.String()))
}

// cleanField trims whitespace and strips one layer of enclosing quotes,
// collapsing doubled quotes inside a stripped field.
func cleanField(field string) string {
	field = strings.TrimSpace(field)
	if len(field) >= 2 && field[0] == '"' && field[len(field)-1] == '"' {
		field = strings.ReplaceAll(field[1:len(field)-1], `""`, `"`)
		field = strings.TrimSpace(field)
	}
	return field
}
