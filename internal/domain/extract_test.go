package domain

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testHeader = "Case #,Date,Suspect Deceased/Injured/Shoot and Miss,Suspect Weapon,Officer(s),Grand Jury Disposition,AG Forms,Summary URL,GeoLocation\n"

	akardRow = `507756T,07/07/2007,Shoot and Miss,Vehicle,"Madison, John W/M",N/A,N/A,https://example.com/report.pdf,"1818 N Akard Street
Dallas, Texas
(32.786522, -96.802127)"` + "\n"

	elmRow = `100200X,01/02/2015,Injured,Knife,"Doe, Jane (B/F); Roe, Rick (W/M)",No Bill,https://example.com/ag.pdf,https://example.com/summary.pdf,"2000 Elm Street
Dallas, Texas
(32.781400, -96.797100)"` + "\n"
)

func TestExtract_EndToEndRow(t *testing.T) {
	records, summary := Extract(testHeader + akardRow)

	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "507756T", rec.CaseNumber)
	assert.Equal(t, "07/07/2007", rec.Date)
	assert.Equal(t, "Shoot and Miss", rec.Outcome)
	assert.Equal(t, "Vehicle", rec.SubjectWeapon)
	assert.Equal(t, "Madison, John W/M", rec.Officers)
	assert.Equal(t, "N/A", rec.GrandJuryDisposition)
	assert.Equal(t, []string{"https://example.com/report.pdf"}, rec.ReferenceURLs)
	assert.Equal(t, "https://example.com/report.pdf", rec.PrimaryURL())
	assert.Equal(t, "1818 N Akard Street", rec.Location.Address)
	assert.Equal(t, 32.786522, rec.Location.Coordinates.Lat)
	assert.Equal(t, -96.802127, rec.Location.Coordinates.Lon)

	assert.Equal(t, 1, summary.Seen)
	assert.Equal(t, 1, summary.Accepted)
	assert.Equal(t, 0, summary.Rejected)
}

func TestExtract_MultilineLocationMergedIntoOneRecord(t *testing.T) {
	records, summary := Extract(testHeader + akardRow + elmRow)

	require.Len(t, records, 2)
	assert.Equal(t, "507756T", records[0].CaseNumber)
	assert.Equal(t, "100200X", records[1].CaseNumber)
	assert.Equal(t, "2000 Elm Street", records[1].Location.Address)
	assert.Equal(t, 2, summary.Seen)
}

func TestExtract_ReferenceURLs(t *testing.T) {
	records := Parse(testHeader + elmRow)

	require.Len(t, records, 1)
	assert.Equal(t, []string{"https://example.com/ag.pdf", "https://example.com/summary.pdf"}, records[0].ReferenceURLs)
	assert.Equal(t, "https://example.com/summary.pdf", records[0].PrimaryURL())
	assert.Equal(t, "No Bill", records[0].GrandJuryDisposition)
}

func TestExtract_NoReferenceURLs(t *testing.T) {
	row := "1,01/01/2020,Deceased,Handgun,Smith (W/M),N/A,N/A,N/A,\"100 Main St\nDallas, Texas\n(32.7, -96.8)\"\n"

	records := Parse(testHeader + row)

	require.Len(t, records, 1)
	assert.Empty(t, records[0].ReferenceURLs)
	assert.Empty(t, records[0].PrimaryURL())
}

func TestExtract_FiveFieldRowRejected(t *testing.T) {
	short := "123456A,01/01/2020,Deceased,Handgun,Smith\n"

	before := Parse(testHeader + akardRow)
	after, summary := Extract(testHeader + short + akardRow)

	assert.Equal(t, before, after, "short row must not change the output")
	assert.Equal(t, 2, summary.Seen)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 1, summary.Reasons[RejectTooFewFields])
	require.Len(t, summary.Rejections, 1)
	assert.Equal(t, Rejection{
		Record:     2,
		CaseNumber: "123456A",
		Reason:     RejectTooFewFields,
		Detail:     "got 5 fields, need at least 9",
	}, summary.Rejections[0])
}

func TestExtract_LastValidParentheticalWins(t *testing.T) {
	tests := []struct {
		name     string
		location string
		wantLat  float64
		wantLon  float64
		wantAddr string
	}{
		{
			name:     "street parenthetical before coordinates",
			location: "\"Suite (12, 34) 500 Main St\nDallas, Texas\n(32.781, -96.801)\"",
			wantLat:  32.781,
			wantLon:  -96.801,
			wantAddr: "Suite (12, 34) 500 Main St",
		},
		{
			name:     "out of range pair after coordinates",
			location: "\"500 Main St (32.781, -96.801) (999, 999)\"",
			wantLat:  32.781,
			wantLon:  -96.801,
			wantAddr: "500 Main St",
		},
		{
			name:     "signed and unspaced",
			location: "\"500 Main St\n(+32.5,-96.25)\"",
			wantLat:  32.5,
			wantLon:  -96.25,
			wantAddr: "500 Main St",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := "9,01/01/2020,Deceased,Handgun,Smith (W/M),N/A,N/A,N/A," + tt.location + "\n"
			records := Parse(testHeader + row)

			require.Len(t, records, 1)
			assert.Equal(t, tt.wantLat, records[0].Location.Coordinates.Lat)
			assert.Equal(t, tt.wantLon, records[0].Location.Coordinates.Lon)
			assert.Equal(t, tt.wantAddr, records[0].Location.Address)
		})
	}
}

func TestExtract_RejectReasons(t *testing.T) {
	tests := []struct {
		name       string
		row        string
		wantReason RejectReason
		wantCase   string
	}{
		{
			name:       "no parenthetical",
			row:        "1,01/01/2020,Deceased,Handgun,Smith (W/M),N/A,N/A,N/A,\"100 Main St\nDallas, Texas\"\n",
			wantReason: RejectMissingCoordinates,
			wantCase:   "1",
		},
		{
			name:       "non numeric parenthetical",
			row:        "2,01/01/2020,Deceased,Handgun,Smith (W/M),N/A,N/A,N/A,\"100 Main St (rear)\"\n",
			wantReason: RejectMissingCoordinates,
			wantCase:   "2",
		},
		{
			name:       "latitude out of range",
			row:        "3,01/01/2020,Deceased,Handgun,Smith (W/M),N/A,N/A,N/A,\"100 Main St\n(95.0, -96.8)\"\n",
			wantReason: RejectInvalidCoordinates,
			wantCase:   "3",
		},
		{
			name:       "blank case number",
			row:        ",01/01/2020,Deceased,Handgun,Smith (W/M),N/A,N/A,N/A,\"100 Main St\n(32.7, -96.8)\"\n",
			wantReason: RejectEmptyCaseNumber,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, summary := Extract(testHeader + tt.row)

			assert.Empty(t, records)
			assert.Equal(t, 1, summary.Seen)
			assert.Equal(t, 1, summary.Rejected)
			assert.Equal(t, 1, summary.Reasons[tt.wantReason])
			require.Len(t, summary.Rejections, 1)
			assert.Equal(t, tt.wantReason, summary.Rejections[0].Reason)
			assert.Equal(t, tt.wantCase, summary.Rejections[0].CaseNumber)
			assert.NotEmpty(t, summary.Rejections[0].Detail)
		})
	}
}

func TestExtract_HeaderNeverEmitted(t *testing.T) {
	// The first record is dropped even when it looks like data.
	records, summary := Extract(akardRow + elmRow)

	require.Len(t, records, 1)
	assert.Equal(t, "100200X", records[0].CaseNumber)
	assert.Equal(t, 1, summary.Seen)
}

func TestExtract_EmptyAndHeaderOnly(t *testing.T) {
	for _, input := range []string{"", "\n\n", testHeader, "\n" + testHeader + "\n\n"} {
		records, summary := Extract(input)
		assert.Empty(t, records, "input %q", input)
		assert.Equal(t, 0, summary.Seen, "input %q", input)
		assert.Equal(t, 0, summary.Rejected, "input %q", input)
	}
}

func TestExtract_BlankLinesIgnored(t *testing.T) {
	input := "\n\n" + testHeader + "\n" + akardRow + "\n   \n" + elmRow + "\n"

	records, summary := Extract(input)

	assert.Len(t, records, 2)
	assert.Equal(t, 2, summary.Seen)
	assert.Equal(t, 0, summary.Rejected)
}

func TestExtract_CRLFLineEndings(t *testing.T) {
	input := strings.ReplaceAll(testHeader+akardRow, "\n", "\r\n")

	records := Parse(input)

	require.Len(t, records, 1)
	assert.Equal(t, "1818 N Akard Street", records[0].Location.Address)
	assert.Equal(t, 32.786522, records[0].Location.Coordinates.Lat)
}

func TestExtract_UnquotedLocationSplitAcrossFields(t *testing.T) {
	row := "100,01/02/2015,Injured,Knife,Doe (B/M),No Bill,N/A,N/A,2000 Elm St,Dallas,Texas (32.78, -96.80)\n"

	records := Parse(testHeader + row)

	require.Len(t, records, 1)
	assert.Equal(t, "2000 Elm St, Dallas, Texas", records[0].Location.Address)
	assert.Equal(t, 32.78, records[0].Location.Coordinates.Lat)
	assert.Equal(t, -96.80, records[0].Location.Coordinates.Lon)
}

func TestExtract_StrayQuoteDoesNotSwallowInput(t *testing.T) {
	broken := "555,01/01/2020,Deceased,Handgun,\"Madison, John (W/M),N/A,N/A,N/A,1818 N Akard (32.78, -96.80)\n"

	records, summary := Extract(testHeader + broken + akardRow)

	require.Len(t, records, 1)
	assert.Equal(t, "507756T", records[0].CaseNumber)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 1, summary.Reasons[RejectTooFewFields])
}

func TestExtract_ClosingQuoteOnOwnLine(t *testing.T) {
	row := "7,01/01/2020,Deceased,Handgun,Smith (W/M),N/A,N/A,N/A,\"100 Main St\nDallas, Texas\n(32.7, -96.8)\n\"\n"

	records, summary := Extract(testHeader + row + elmRow)

	require.Len(t, records, 2)
	assert.Equal(t, "7", records[0].CaseNumber)
	assert.Equal(t, "100 Main St", records[0].Location.Address)
	assert.Equal(t, 0, summary.Rejected)
}

func TestExtract_FieldsKeptVerbatim(t *testing.T) {
	row := `42,03/04/2016,"Said ""stop""",  Handgun ; Knife  ,"Doe, Jane (B/F)",No Bill,N/A,N/A,"1 Main St
(32.7, -96.8)"` + "\n"

	records := Parse(testHeader + row)

	require.Len(t, records, 1)
	assert.Equal(t, `Said "stop"`, records[0].Outcome)
	assert.Equal(t, "Handgun ; Knife", records[0].SubjectWeapon)
	assert.Equal(t, "Doe, Jane (B/F)", records[0].Officers)
}

func TestExtract_DuplicateCaseNumbersCounted(t *testing.T) {
	records, summary := Extract(testHeader + akardRow + akardRow)

	assert.Len(t, records, 2, "duplicates are reported, not removed")
	assert.Equal(t, 1, summary.Duplicates)
}

func TestExtract_RetainsBoundedRejections(t *testing.T) {
	var b strings.Builder
	b.WriteString(testHeader)
	for i := range MaxRetainedRejections + 5 {
		fmt.Fprintf(&b, "%d,01/01/2020,Deceased\n", i)
	}

	records, summary := Extract(b.String())

	assert.Empty(t, records)
	assert.Equal(t, MaxRetainedRejections+5, summary.Rejected)
	assert.Len(t, summary.Rejections, MaxRetainedRejections)
	assert.Equal(t, 2, summary.Rejections[0].Record)
}

func TestExtract_Idempotent(t *testing.T) {
	input := testHeader + akardRow + "bad,row\n" + elmRow

	first, firstSummary := Extract(input)
	second, secondSummary := Extract(input)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("records differ between runs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(firstSummary, secondSummary); diff != "" {
		t.Fatalf("summaries differ between runs (-first +second):\n%s", diff)
	}
}

func TestSplitFields(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "a,b,c", want: []string{"a", "b", "c"}},
		{in: " a , b ", want: []string{"a", "b"}},
		{in: `a,"b, c",d`, want: []string{"a", "b, c", "d"}},
		{in: `a,,"",d`, want: []string{"a", "", "", "d"}},
		{in: `"x ""y"" z"`, want: []string{`x "y" z`}},
		{in: `"open, never closed`, want: []string{`"open, never closed`}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitFields(tt.in), "input %q", tt.in)
	}
}

func TestRecordScanner(t *testing.T) {
	s := newRecordScanner("a,\"b\nc\"\r\nd\r\n\ne")

	var got []string
	for {
		rec, ok := s.next()
		if !ok {
			break
		}
		got = append(got, rec)
	}

	assert.Equal(t, []string{"a,\"b\nc\"", "d", "", "e"}, got)
}

func TestExtract_AddressLineEndingInPairStaysInRecord(t *testing.T) {
	row := "9,01/01/2020,Deceased,Handgun,Smith (W/M),N/A,N/A,N/A,\"500 Main St (12, 34)\nDallas, Texas\n(32.781, -96.801)\"\n"

	records, summary := Extract(testHeader + row + elmRow)

	require.Len(t, records, 2)
	assert.Equal(t, "9", records[0].CaseNumber)
	assert.Equal(t, Coordinates{Lat: 32.781, Lon: -96.801}, records[0].Location.Coordinates)
	assert.Equal(t, "500 Main St (12, 34)", records[0].Location.Address)
	assert.Equal(t, "100200X", records[1].CaseNumber)
	assert.Equal(t, 2, summary.Seen)
	assert.Equal(t, 0, summary.Rejected)
}

func TestExtract_UnquotedMultilineLocation(t *testing.T) {
	row := "9,01/01/2020,Deceased,Handgun,Smith (W/M),N/A,N/A,N/A,500 Main St\nDallas, Texas\n(32.781, -96.801)\n"

	records, summary := Extract(testHeader + row + elmRow)

	require.Len(t, records, 2)
	assert.Equal(t, "9", records[0].CaseNumber)
	assert.Equal(t, "500 Main St", records[0].Location.Address)
	assert.Equal(t, Coordinates{Lat: 32.781, Lon: -96.801}, records[0].Location.Coordinates)
	assert.Equal(t, "100200X", records[1].CaseNumber)
	assert.Equal(t, 2, summary.Seen)
	assert.Equal(t, 0, summary.Rejected)
}

func TestExtract_MissingCoordinatesDoesNotFoldNextRow(t *testing.T) {
	row := "1,01/01/2020,Deceased,Handgun,Smith (W/M),N/A,N/A,N/A,Unknown location\n"

	records, summary := Extract(testHeader + row + akardRow)

	require.Len(t, records, 1)
	assert.Equal(t, "507756T", records[0].CaseNumber)
	assert.Equal(t, 1, summary.Reasons[RejectMissingCoordinates])
}

func TestRecordScanner_FoldsUntilPairLine(t *testing.T) {
	s := newRecordScanner("h1,h2\n1,2,3,4,5,6,7,8,500 Main St\nDallas, Texas\n(32.7, -96.8)\nnext")

	var got []string
	for {
		rec, ok := s.next()
		if !ok {
			break
		}
		got = append(got, rec)
	}

	assert.Equal(t, []string{
		"h1,h2",
		"1,2,3,4,5,6,7,8,500 Main St\nDallas, Texas\n(32.7, -96.8)",
		"next",
	}, got)
}
