package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/foodshare/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single writer avoids SQLITE_BUSY on the claim transaction.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS organizations (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	address         TEXT NOT NULL,
	phone           TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	website         TEXT NOT NULL DEFAULT '',
	latitude        REAL NOT NULL,
	longitude       REAL NOT NULL,
	org_type        TEXT NOT NULL DEFAULT '',
	capacity        INTEGER NOT NULL DEFAULT 0,
	operating_hours TEXT NOT NULL DEFAULT '',
	requirements    TEXT NOT NULL DEFAULT '',
	is_active       INTEGER NOT NULL DEFAULT 1,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS food_listings (
	id                TEXT PRIMARY KEY,
	donor_name        TEXT NOT NULL,
	donor_contact     TEXT NOT NULL DEFAULT '',
	food_name         TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	quantity          INTEGER NOT NULL DEFAULT 1,
	unit              TEXT NOT NULL DEFAULT 'items',
	expiry_date       TEXT NOT NULL,
	food_type         TEXT NOT NULL DEFAULT '',
	location_lat      REAL,
	location_lng      REAL,
	address           TEXT NOT NULL DEFAULT '',
	storage_condition TEXT NOT NULL DEFAULT '',
	packaging         TEXT NOT NULL DEFAULT '',
	image_url         TEXT NOT NULL DEFAULT '',
	ai_status         TEXT NOT NULL DEFAULT '',
	ai_confidence     REAL NOT NULL DEFAULT 0,
	ai_reason         TEXT NOT NULL DEFAULT '',
	ai_tier           TEXT NOT NULL DEFAULT '',
	ai_model          TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'available',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS donation_transactions (
	id               TEXT PRIMARY KEY,
	food_listing_id  TEXT NOT NULL REFERENCES food_listings(id),
	receiver_id      TEXT REFERENCES organizations(id),
	status           TEXT NOT NULL DEFAULT 'claimed',
	claimed_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	scheduled_pickup DATETIME,
	notes            TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_food_listings_status ON food_listings(status);
CREATE INDEX IF NOT EXISTS idx_food_listings_ai_status ON food_listings(ai_status);
CREATE INDEX IF NOT EXISTS idx_food_listings_expiry ON food_listings(expiry_date);
CREATE INDEX IF NOT EXISTS idx_transactions_listing ON donation_transactions(food_listing_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateListing(ctx context.Context, l *model.Listing) error {
	prepareListing(l, uuid.New().String(), time.Now().UTC())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO food_listings (`+listingColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		listingArgs(l)...,
	)
	return eris.Wrap(err, "sqlite: insert listing")
}

func (s *SQLiteStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM food_listings WHERE id = ?`, id)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("listing", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get listing %s", id)
	}
	return l, nil
}

func (s *SQLiteStore) ListListings(ctx context.Context, filter model.ListingFilter) ([]model.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM food_listings WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.AIStatus != "" {
		query += ` AND ai_status = ?`
		args = append(args, string(filter.AIStatus))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list listings")
	}
	defer rows.Close() //nolint:errcheck

	listings := []model.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan listing")
		}
		listings = append(listings, *l)
	}
	return listings, eris.Wrap(rows.Err(), "sqlite: list listings iterate")
}

func (s *SQLiteStore) UpdateClassification(ctx context.Context, id string, c model.Classification) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE food_listings SET ai_status = ?, ai_confidence = ?, ai_reason = ?, ai_tier = ?, ai_model = ?, updated_at = ?
		 WHERE id = ?`,
		string(c.Status), c.Confidence, c.Reason, string(c.Tier), c.ModelID, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update classification %s", id)
	}
	return checkRowsAffected(res, "listing", id)
}

func (s *SQLiteStore) SetListingImage(ctx context.Context, id, imageURL string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE food_listings SET image_url = ?, updated_at = ? WHERE id = ?`,
		imageURL, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set listing image %s", id)
	}
	return checkRowsAffected(res, "listing", id)
}

func (s *SQLiteStore) ExpireListings(ctx context.Context, today time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE food_listings SET status = ?, updated_at = ? WHERE status = ? AND expiry_date < ?`,
		string(model.ListingExpired), time.Now().UTC(), string(model.ListingAvailable), today.Format(time.DateOnly),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: expire listings")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) CreateOrganization(ctx context.Context, o *model.Organization) error {
	o.ID = uuid.New().String()
	o.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO organizations (`+organizationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		organizationArgs(o)...,
	)
	return eris.Wrap(err, "sqlite: insert organization")
}

func (s *SQLiteStore) ListOrganizations(ctx context.Context, activeOnly bool) ([]model.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list organizations")
	}
	defer rows.Close() //nolint:errcheck

	orgs := []model.Organization{}
	for rows.Next() {
		var o model.Organization
		if err := rows.Scan(organizationDest(&o)...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan organization")
		}
		orgs = append(orgs, o)
	}
	return orgs, eris.Wrap(rows.Err(), "sqlite: list organizations iterate")
}

func (s *SQLiteStore) ClaimListing(ctx context.Context, listingID, orgID, notes string) (*model.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin claim")
	}
	defer tx.Rollback() //nolint:errcheck

	if orgID != "" {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM organizations WHERE id = ?`, orgID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("organization", orgID)
		}
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: lookup organization %s", orgID)
		}
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE food_listings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(model.ListingClaimed), now, listingID, string(model.ListingAvailable),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: claim listing %s", listingID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM food_listings WHERE id = ?`, listingID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("listing", listingID)
		}
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: lookup listing %s", listingID)
		}
		return nil, &NotAvailableError{ListingID: listingID, Status: model.ListingStatus(status)}
	}

	t := &model.Transaction{
		ID:             uuid.New().String(),
		ListingID:      listingID,
		OrganizationID: orgID,
		Status:         model.TransactionClaimed,
		ClaimedAt:      now,
		Notes:          notes,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO donation_transactions (id, food_listing_id, receiver_id, status, claimed_at, notes)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.ListingID, nullString(orgID), string(t.Status), t.ClaimedAt, t.Notes,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert transaction")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit claim")
	}
	return t, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	if err := s.db.QueryRowContext(ctx, statsQuery).Scan(statsDest(&st)...); err != nil {
		return nil, eris.Wrap(err, "sqlite: listing stats")
	}
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations WHERE is_active = 1`).Scan(&st.Organizations)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: organization stats")
	}
	return &st, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanListing(row scannable) (*model.Listing, error) {
	var l model.Listing
	var lat, lng sql.NullFloat64
	err := row.Scan(
		&l.ID, &l.DonorName, &l.DonorContact, &l.FoodName, &l.Description, &l.Quantity, &l.Unit,
		&l.ExpiryDate, &l.FoodType, &lat, &lng, &l.Location.Address, &l.StorageCondition, &l.Packaging,
		&l.ImageURL, &l.AI.Status, &l.AI.Confidence, &l.AI.Reason, &l.AI.Tier, &l.AI.ModelID,
		&l.Status, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat.Valid {
		l.Location.Lat = &lat.Float64
	}
	if lng.Valid {
		l.Location.Lng = &lng.Float64
	}
	return &l, nil
}

func listingArgs(l *model.Listing) []any {
	return []any{
		l.ID, l.DonorName, l.DonorContact, l.FoodName, l.Description, l.Quantity, l.Unit,
		l.ExpiryDate, l.FoodType, nullFloat(l.Location.Lat), nullFloat(l.Location.Lng), l.Location.Address,
		l.StorageCondition, l.Packaging, l.ImageURL, string(l.AI.Status), l.AI.Confidence,
		l.AI.Reason, string(l.AI.Tier), l.AI.ModelID, string(l.Status), l.CreatedAt, l.UpdatedAt,
	}
}

func organizationArgs(o *model.Organization) []any {
	return []any{
		o.ID, o.Name, o.Description, o.Address, o.Phone, o.Email, o.Website, o.Lat, o.Lng,
		o.OrgType, o.Capacity, o.OperatingHours, o.Requirements, o.IsActive, o.CreatedAt,
	}
}

func organizationDest(o *model.Organization) []any {
	return []any{
		&o.ID, &o.Name, &o.Description, &o.Address, &o.Phone, &o.Email, &o.Website, &o.Lat, &o.Lng,
		&o.OrgType, &o.Capacity, &o.OperatingHours, &o.Requirements, &o.IsActive, &o.CreatedAt,
	}
}

func statsDest(st *model.Stats) []any {
	return []any{
		&st.TotalDonations, &st.Available, &st.Claimed, &st.Delivered, &st.Expired,
		&st.DonationsWithImages, &st.AISafe, &st.AIConsumeSoon, &st.AIReject,
	}
}
