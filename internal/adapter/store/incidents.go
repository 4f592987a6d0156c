package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/ois-incident-etl/internal/domain"
)

// runTimeLayout is fixed width so loaded_at sorts lexically.
const runTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// LoadRun records one successful Reload.
type LoadRun struct {
	ID        string    `json:"run_id"`
	LoadedAt  time.Time `json:"loaded_at"`
	Incidents int       `json:"incidents"`
}

// LoadBatch replaces the stored snapshot with incidents.
func (s *Store) LoadBatch(ctx context.Context, incidents []domain.Incident) error {
	_, err := s.Reload(ctx, incidents)
	return err
}

// Reload replaces every stored incident with the given set in one transaction.
// Incidents sharing an ID collapse to the last occurrence, so reloading the
// same input twice leaves the same state.
func (s *Store) Reload(ctx context.Context, incidents []domain.Incident) (LoadRun, error) {
	unique := dedupeByID(incidents)
	run := LoadRun{ID: uuid.NewString(), LoadedAt: s.clock.Now().UTC(), Incidents: len(unique)}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return LoadRun{}, fmt.Errorf("store reload: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"officers", "weapons", "incidents"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return LoadRun{}, fmt.Errorf("store reload: clear %s: %w", table, err)
		}
	}

	if err := s.insertAll(ctx, tx, unique); err != nil {
		return LoadRun{}, fmt.Errorf("store reload: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		s.rebind(`INSERT INTO load_runs (run_id, loaded_at, incident_count) VALUES (?, ?, ?)`),
		run.ID, run.LoadedAt.Format(runTimeLayout), run.Incidents,
	); err != nil {
		return LoadRun{}, fmt.Errorf("store reload: record run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return LoadRun{}, fmt.Errorf("store reload: commit: %w", err)
	}

	s.logger.Info("incidents reloaded", "run_id", run.ID, "incidents", run.Incidents,
		"duplicates_collapsed", len(incidents)-len(unique))
	return run, nil
}

func (s *Store) insertAll(ctx context.Context, tx *sql.Tx, incidents []domain.Incident) error {
	incStmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO incidents (
			id, incident_date, outcome, incident_class, subject_weapon,
			grand_jury_disposition, ag_forms_url, summary_url, address,
			latitude, longitude, h3_cell, formatted_address, place_name,
			geo_confidence, geo_source, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare incident insert: %w", err)
	}
	defer incStmt.Close()

	offStmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO officers (incident_id, position, name, race_gender) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare officer insert: %w", err)
	}
	defer offStmt.Close()

	wpnStmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO weapons (incident_id, position, weapon) VALUES (?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare weapon insert: %w", err)
	}
	defer wpnStmt.Close()

	for i := range incidents {
		inc := &incidents[i]
		if _, err := incStmt.ExecContext(ctx,
			inc.ID, inc.IncidentDate, inc.Outcome, string(inc.Class), inc.SubjectWeapon,
			inc.Disposition, nullString(inc.AGFormsURL), nullString(inc.SummaryURL), inc.Address,
			inc.Lat, inc.Lon, nullString(inc.H3Cell), nullString(inc.FormattedAddress), nullString(inc.PlaceName),
			inc.GeoConfidence, nullString(inc.GeoSource), inc.ProcessedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert incident %s: %w", inc.ID, err)
		}
		for pos, o := range inc.Officers {
			if _, err := offStmt.ExecContext(ctx, inc.ID, pos, o.Name, nullString(o.RaceGender)); err != nil {
				return fmt.Errorf("insert officer %s/%d: %w", inc.ID, pos, err)
			}
		}
		for pos, w := range inc.Weapons {
			if _, err := wpnStmt.ExecContext(ctx, inc.ID, pos, w); err != nil {
				return fmt.Errorf("insert weapon %s/%d: %w", inc.ID, pos, err)
			}
		}
	}
	return nil
}

func dedupeByID(incidents []domain.Incident) []domain.Incident {
	index := make(map[string]int, len(incidents))
	out := make([]domain.Incident, 0, len(incidents))
	for _, inc := range incidents {
		if i, ok := index[inc.ID]; ok {
			out[i] = inc
			continue
		}
		index[inc.ID] = len(out)
		out = append(out, inc)
	}
	return out
}

// Count returns the number of stored incidents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count incidents: %w", err)
	}
	return n, nil
}

// LastRun returns the most recent Reload, or sql.ErrNoRows when none happened.
func (s *Store) LastRun(ctx context.Context) (LoadRun, error) {
	var (
		run      LoadRun
		loadedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, loaded_at, incident_count FROM load_runs ORDER BY loaded_at DESC LIMIT 1`,
	).Scan(&run.ID, &loadedAt, &run.Incidents)
	if err != nil {
		return LoadRun{}, fmt.Errorf("last load run: %w", err)
	}
	if run.LoadedAt, err = time.Parse(runTimeLayout, loadedAt); err != nil {
		return LoadRun{}, fmt.Errorf("last load run: parse loaded_at: %w", err)
	}
	return run, nil
}

// ListIncidents returns every stored incident ordered by date, then ID.
func (s *Store) ListIncidents(ctx context.Context) ([]domain.Incident, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, incident_date, outcome, incident_class, subject_weapon,
			grand_jury_disposition, ag_forms_url, summary_url, address,
			latitude, longitude, h3_cell, formatted_address, place_name,
			geo_confidence, geo_source, processed_at
		FROM incidents
		ORDER BY incident_date, id`)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]domain.Incident, 0)
	byID := make(map[string]int)
	for rows.Next() {
		var (
			inc                                   domain.Incident
			class, processedAt                    string
			disposition, agForms, summary, h3cell sql.NullString
			formatted, place, geoSource           sql.NullString
		)
		if err := rows.Scan(
			&inc.ID, &inc.IncidentDate, &inc.Outcome, &class, &inc.SubjectWeapon,
			&disposition, &agForms, &summary, &inc.Address,
			&inc.Lat, &inc.Lon, &h3cell, &formatted, &place,
			&inc.GeoConfidence, &geoSource, &processedAt,
		); err != nil {
			return nil, fmt.Errorf("list incidents: scan: %w", err)
		}
		inc.Class = domain.OutcomeClass(class)
		if disposition.Valid {
			d := disposition.String
			inc.Disposition = &d
		}
		inc.AGFormsURL = agForms.String
		inc.SummaryURL = summary.String
		inc.H3Cell = h3cell.String
		inc.FormattedAddress = formatted.String
		inc.PlaceName = place.String
		inc.GeoSource = geoSource.String
		if inc.ProcessedAt, err = time.Parse(time.RFC3339Nano, processedAt); err != nil {
			return nil, fmt.Errorf("list incidents: parse processed_at for %s: %w", inc.ID, err)
		}

		byID[inc.ID] = len(incidents)
		incidents = append(incidents, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}

	if err := s.attachOfficers(ctx, incidents, byID); err != nil {
		return nil, err
	}
	if err := s.attachWeapons(ctx, incidents, byID); err != nil {
		return nil, err
	}
	return incidents, nil
}

func (s *Store) attachOfficers(ctx context.Context, incidents []domain.Incident, byID map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT incident_id, name, race_gender FROM officers ORDER BY incident_id, position`)
	if err != nil {
		return fmt.Errorf("list officers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, name   string
			raceGender sql.NullString
		)
		if err := rows.Scan(&id, &name, &raceGender); err != nil {
			return fmt.Errorf("list officers: scan: %w", err)
		}
		if i, ok := byID[id]; ok {
			incidents[i].Officers = append(incidents[i].Officers, domain.Officer{Name: name, RaceGender: raceGender.String})
		}
	}
	return rows.Err()
}

func (s *Store) attachWeapons(ctx context.Context, incidents []domain.Incident, byID map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT incident_id, weapon FROM weapons ORDER BY incident_id, position`)
	if err != nil {
		return fmt.Errorf("list weapons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, weapon string
		if err := rows.Scan(&id, &weapon); err != nil {
			return fmt.Errorf("list weapons: scan: %w", err)
		}
		if i, ok := byID[id]; ok {
			incidents[i].Weapons = append(incidents[i].Weapons, weapon)
		}
	}
	return rows.Err()
}
