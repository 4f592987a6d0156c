// Package domain models the Dallas Police officer-involved shooting (OIS) dataset.
//
// # Data Source
//
// The City of Dallas publishes one CSV row per shooting incident. The file is
// hand-maintained and its quoting is inconsistent, so it is read with a
// tolerant extractor ([Extract]) instead of a general CSV reader.
//
// # Column Layout
//
// Columns are positional:
//
//	0 case number            "507756T"
//	1 date                   "07/07/2007" (MM/DD/YYYY)
//	2 outcome                "Shoot and Miss", "Deceased", "Injured", ...
//	3 subject weapon         "Handgun", "Vehicle; Knife"
//	4 officers               "Madison, John (W/M); Smith, Jane (B/F)"
//	5 grand jury disposition "No Bill", "N/A"
//	6 AG form URL            "N/A" when missing
//	7 case summary URL
//	8 location               multi-line: street, city/state, "(lat, lon)"
//
// The location column is usually quoted and spans three physical lines. When
// it is not quoted its commas split it into several tokens, so everything
// from column 8 onward is joined back together before the coordinates are
// searched for.
//
// # Coordinates
//
// The coordinate parenthetical is "(<lat>, <lon>)" in signed decimal degrees.
// Street text occasionally carries its own numeric parenthetical, so the last
// pair that lies inside lat [-90, 90] and lon [-180, 180] is used. Rows without
// one are rejected: there is no (0, 0) fallback.
//
// # Normalization
//
// [NormalizeIncident] produces the storage shape: outcome mapped onto
// [OutcomeClass] by keyword ("deceased" → fatal, "injured" → non_fatal,
// everything else shot_fired_no_hit), officers exploded on ';' with their
// race/gender token, dates converted to ISO 8601, "N/A" dispositions turned
// into NULL, and an H3 cell index for map clustering.
package domain
