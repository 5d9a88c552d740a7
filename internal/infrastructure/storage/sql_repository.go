package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	sq "github.com/Masterminds/squirrel"

	"ObservationsIndexer/internal/domain"
	"ObservationsIndexer/internal/ports"
)

var identExpr = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dialect isolates what differs between Postgres and SQLite.
type dialect struct {
	name              string
	placeholder       sq.PlaceholderFormat
	isUniqueViolation func(error) bool
	createStatements  func(schema, table string) []string
	dropStatements    func(schema, table string) []string
	qualify           func(schema, table string) string
}

// SQLRepository persists observations through database/sql. The identity
// column carries a UNIQUE constraint; violations surface as
// domain.ErrAlreadyExists.
type SQLRepository struct {
	db      *sql.DB
	sb      sq.StatementBuilderType
	dialect dialect
	schema  string
	table   string
	now     func() time.Time
}

var _ ports.ObservationRepository = (*SQLRepository)(nil)

var selectColumns = []string{
	"id", "file_id", "filename", "raw_filename", "solution_filename", "has_solution", "stage",
	"date_obs", "date_obs_mjd", "ra_deg", "dec_deg", "alt_deg", "az_deg", "airmass",
	"image_type", "filter_name", "target_object", "exposure_time", "binning",
	"telescope", "instrument", "plate_scale", "odds", "created_at", "updated_at",
}

func newSQLRepository(db *sql.DB, d dialect, schema, table string) (*SQLRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("%s: nil database handle", d.name)
	}
	if !identExpr.MatchString(table) {
		return nil, fmt.Errorf("%s: invalid table name %q", d.name, table)
	}
	if schema != "" && !identExpr.MatchString(schema) {
		return nil, fmt.Errorf("%s: invalid schema name %q", d.name, schema)
	}
	return &SQLRepository{
		db:      db,
		sb:      sq.StatementBuilder.PlaceholderFormat(d.placeholder),
		dialect: d,
		schema:  schema,
		table:   table,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLRepository) qualified() string {
	return r.dialect.qualify(r.schema, r.table)
}

// EnsureSchema creates the table when missing; reset drops it first.
func (r *SQLRepository) EnsureSchema(ctx context.Context, reset bool) error {
	var stmts []string
	if reset {
		stmts = append(stmts, r.dialect.dropStatements(r.schema, r.table)...)
	}
	stmts = append(stmts, r.dialect.createStatements(r.schema, r.table)...)

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// FindByIdentity loads the record stored under id, or nil.
func (r *SQLRepository) FindByIdentity(ctx context.Context, id domain.Identity) (*domain.Observation, error) {
	query, args, err := r.sb.Select(selectColumns...).
		From(r.qualified()).
		Where(sq.Eq{"file_id": id.String()}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	obs, err := scanObservation(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select observation: %w", err)
	}
	return &obs, nil
}

// Insert adds obs; the identity must not be stored yet.
func (r *SQLRepository) Insert(ctx context.Context, obs domain.Observation) (domain.Observation, error) {
	now := r.now()
	values := columnValues(obs)
	values["file_id"] = obs.Identity.String()
	values["created_at"] = now
	values["updated_at"] = now

	query, args, err := r.sb.Insert(r.qualified()).
		SetMap(values).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return domain.Observation{}, fmt.Errorf("build insert: %w", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if r.dialect.isUniqueViolation(err) {
			return domain.Observation{}, fmt.Errorf("insert %s: %w", obs.Identity, domain.ErrAlreadyExists)
		}
		return domain.Observation{}, fmt.Errorf("insert observation: %w", err)
	}

	obs = storable(obs)
	obs.ID = id
	obs.CreatedAt = now
	obs.UpdatedAt = now
	return obs, nil
}

// Update writes every updatable column of obs onto the row keyed by id. The
// primary key and created_at are left alone; updated_at is set here.
func (r *SQLRepository) Update(ctx context.Context, id domain.Identity, obs domain.Observation) error {
	values := columnValues(obs)
	values["updated_at"] = r.now()

	query, args, err := r.sb.Update(r.qualified()).
		SetMap(values).
		Where(sq.Eq{"file_id": id.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update observation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update %s: no such observation", id)
	}
	return nil
}

// Summary counts records and finds the earliest and latest capture dates.
func (r *SQLRepository) Summary(ctx context.Context) (domain.CatalogSummary, error) {
	var summary domain.CatalogSummary

	query, args, err := r.sb.Select("COUNT(*)").From(r.qualified()).ToSql()
	if err != nil {
		return summary, fmt.Errorf("build count: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&summary.Count); err != nil {
		return summary, fmt.Errorf("count observations: %w", err)
	}
	if summary.Count == 0 {
		return summary, nil
	}

	for _, order := range []string{"date_obs ASC", "date_obs DESC"} {
		query, args, err := r.sb.Select("date_obs").From(r.qualified()).OrderBy(order).Limit(1).ToSql()
		if err != nil {
			return summary, fmt.Errorf("build date range: %w", err)
		}
		var at time.Time
		if err := r.db.QueryRowContext(ctx, query, args...).Scan(&at); err != nil {
			return summary, fmt.Errorf("date range: %w", err)
		}
		at = at.UTC()
		if summary.First == nil {
			summary.First = &at
		} else {
			summary.Last = &at
		}
	}
	return summary, nil
}

// columnValues maps the updatable fields onto columns. Nil pointers become NULL.
func columnValues(obs domain.Observation) map[string]interface{} {
	var rawFile *string
	if p, ok := obs.RawFile.Path(); ok {
		rawFile = &p
	}
	var imageType *string
	if obs.ImageType != domain.ImageTypeUnknown {
		s := obs.ImageType.String()
		imageType = &s
	}

	return map[string]interface{}{
		"filename":          obs.Filename,
		"raw_filename":      rawFile,
		"solution_filename": obs.SolutionFile,
		"has_solution":      obs.HasSolution,
		"stage":             obs.Stage.String(),
		"date_obs":          obs.DateObs.UTC(),
		"date_obs_mjd":      obs.DateObsMJD,
		"ra_deg":            obs.RA,
		"dec_deg":           obs.Dec,
		"alt_deg":           obs.Alt,
		"az_deg":            obs.Az,
		"airmass":           obs.Airmass,
		"image_type":        imageType,
		"filter_name":       obs.Filter,
		"target_object":     obs.TargetObject,
		"exposure_time":     obs.ExposureTime,
		"binning":           obs.Binning,
		"telescope":         obs.Facility.String(),
		"instrument":        obs.Instrument,
		"plate_scale":       obs.PlateScale,
		"odds":              obs.Odds,
	}
}

func scanObservation(row *sql.Row) (domain.Observation, error) {
	var obs domain.Observation
	var fileID, stage, telescope string
	var rawFile, solutionFile, imageType sql.NullString
	var filter, target, instrument sql.NullString
	var ra, dec, alt, az, airmass sql.NullFloat64
	var plateScale, odds sql.NullFloat64
	var binning sql.NullInt64

	err := row.Scan(
		&obs.ID, &fileID, &obs.Filename, &rawFile, &solutionFile, &obs.HasSolution, &stage,
		&obs.DateObs, &obs.DateObsMJD, &ra, &dec, &alt, &az, &airmass,
		&imageType, &filter, &target, &obs.ExposureTime, &binning,
		&telescope, &instrument, &plateScale, &odds, &obs.CreatedAt, &obs.UpdatedAt,
	)
	if err != nil {
		return domain.Observation{}, err
	}

	obs.Identity = domain.Identity(fileID)
	obs.DateObs = obs.DateObs.UTC()
	if rawFile.Valid {
		obs.RawFile = domain.KnownRawFile(rawFile.String)
	}
	if obs.Stage, err = domain.ParseStage(stage); err != nil {
		return domain.Observation{}, err
	}
	if obs.Facility, err = domain.ParseFacility(telescope); err != nil {
		return domain.Observation{}, err
	}
	if obs.ImageType, err = domain.ParseImageType(imageType.String); err != nil {
		return domain.Observation{}, err
	}

	obs.SolutionFile = nullString(solutionFile)
	obs.Filter = nullString(filter)
	obs.TargetObject = nullString(target)
	obs.Instrument = nullString(instrument)
	obs.RA = nullFloat(ra)
	obs.Dec = nullFloat(dec)
	obs.Alt = nullFloat(alt)
	obs.Az = nullFloat(az)
	obs.Airmass = nullFloat(airmass)
	obs.PlateScale = nullFloat(plateScale)
	obs.Odds = nullFloat(odds)
	if binning.Valid {
		b := int(binning.Int64)
		obs.Binning = &b
	}
	return obs, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
