package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/foodshare/internal/db"
	"github.com/sells-group/foodshare/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS organizations (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name            TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	address         TEXT NOT NULL,
	phone           TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	website         TEXT NOT NULL DEFAULT '',
	latitude        DOUBLE PRECISION NOT NULL,
	longitude       DOUBLE PRECISION NOT NULL,
	org_type        TEXT NOT NULL DEFAULT '',
	capacity        INTEGER NOT NULL DEFAULT 0,
	operating_hours TEXT NOT NULL DEFAULT '',
	requirements    TEXT NOT NULL DEFAULT '',
	is_active       BOOLEAN NOT NULL DEFAULT true,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS food_listings (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	donor_name        TEXT NOT NULL,
	donor_contact     TEXT NOT NULL DEFAULT '',
	food_name         TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	quantity          INTEGER NOT NULL DEFAULT 1,
	unit              TEXT NOT NULL DEFAULT 'items',
	expiry_date       TEXT NOT NULL CHECK (expiry_date ~ '^\d{4}-\d{2}-\d{2}$'),
	food_type         TEXT NOT NULL DEFAULT '',
	location_lat      DOUBLE PRECISION,
	location_lng      DOUBLE PRECISION,
	address           TEXT NOT NULL DEFAULT '',
	storage_condition TEXT NOT NULL DEFAULT '',
	packaging         TEXT NOT NULL DEFAULT '',
	image_url         TEXT NOT NULL DEFAULT '',
	ai_status         TEXT NOT NULL DEFAULT '',
	ai_confidence     DOUBLE PRECISION NOT NULL DEFAULT 0,
	ai_reason         TEXT NOT NULL DEFAULT '',
	ai_tier           TEXT NOT NULL DEFAULT '',
	ai_model          TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'available',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS donation_transactions (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	food_listing_id  TEXT NOT NULL REFERENCES food_listings(id),
	receiver_id      TEXT REFERENCES organizations(id),
	status           TEXT NOT NULL DEFAULT 'claimed',
	claimed_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	scheduled_pickup TIMESTAMPTZ,
	notes            TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_food_listings_status ON food_listings(status);
CREATE INDEX IF NOT EXISTS idx_food_listings_ai_status ON food_listings(ai_status);
CREATE INDEX IF NOT EXISTS idx_food_listings_expiry ON food_listings(expiry_date);
CREATE INDEX IF NOT EXISTS idx_transactions_listing ON donation_transactions(food_listing_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateListing(ctx context.Context, l *model.Listing) error {
	prepareListing(l, uuid.New().String(), time.Now().UTC())

	_, err := s.pool.Exec(ctx,
		`INSERT INTO food_listings (`+listingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		listingArgs(l)...,
	)
	return eris.Wrap(err, "postgres: insert listing")
}

func (s *PostgresStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	l, err := scanPgListing(s.pool.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM food_listings WHERE id = $1`, id))
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, notFound("listing", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get listing %s", id)
	}
	return l, nil
}

func (s *PostgresStore) ListListings(ctx context.Context, filter model.ListingFilter) ([]model.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM food_listings WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.AIStatus != "" {
		query += fmt.Sprintf(` AND ai_status = $%d`, argIdx)
		args = append(args, string(filter.AIStatus))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list listings")
	}
	defer rows.Close()

	listings := []model.Listing{}
	for rows.Next() {
		l, err := scanPgListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan listing")
		}
		listings = append(listings, *l)
	}
	return listings, eris.Wrap(rows.Err(), "postgres: list listings iterate")
}

func (s *PostgresStore) UpdateClassification(ctx context.Context, id string, c model.Classification) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE food_listings SET ai_status = $1, ai_confidence = $2, ai_reason = $3, ai_tier = $4, ai_model = $5, updated_at = $6
		 WHERE id = $7`,
		string(c.Status), c.Confidence, c.Reason, string(c.Tier), c.ModelID, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update classification %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("listing", id)
	}
	return nil
}

func (s *PostgresStore) SetListingImage(ctx context.Context, id, imageURL string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE food_listings SET image_url = $1, updated_at = $2 WHERE id = $3`,
		imageURL, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set listing image %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("listing", id)
	}
	return nil
}

func (s *PostgresStore) ExpireListings(ctx context.Context, today time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE food_listings SET status = $1, updated_at = $2 WHERE status = $3 AND expiry_date < $4`,
		string(model.ListingExpired), time.Now().UTC(), string(model.ListingAvailable), today.Format(time.DateOnly),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: expire listings")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CreateOrganization(ctx context.Context, o *model.Organization) error {
	o.ID = uuid.New().String()
	o.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO organizations (`+organizationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		organizationArgs(o)...,
	)
	return eris.Wrap(err, "postgres: insert organization")
}

func (s *PostgresStore) ListOrganizations(ctx context.Context, activeOnly bool) ([]model.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list organizations")
	}
	defer rows.Close()

	orgs := []model.Organization{}
	for rows.Next() {
		var o model.Organization
		if err := rows.Scan(organizationDest(&o)...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan organization")
		}
		orgs = append(orgs, o)
	}
	return orgs, eris.Wrap(rows.Err(), "postgres: list organizations iterate")
}

func (s *PostgresStore) ClaimListing(ctx context.Context, listingID, orgID, notes string) (*model.Transaction, error) {
	now := time.Now().UTC()
	t := &model.Transaction{
		ID:             uuid.New().String(),
		ListingID:      listingID,
		OrganizationID: orgID,
		Status:         model.TransactionClaimed,
		ClaimedAt:      now,
		Notes:          notes,
	}

	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		if orgID != "" {
			var one int
			err := tx.QueryRow(ctx, `SELECT 1 FROM organizations WHERE id = $1`, orgID).Scan(&one)
			if eris.Is(err, pgx.ErrNoRows) {
				return notFound("organization", orgID)
			}
			if err != nil {
				return eris.Wrapf(err, "postgres: lookup organization %s", orgID)
			}
		}

		tag, err := tx.Exec(ctx,
			`UPDATE food_listings SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
			string(model.ListingClaimed), now, listingID, string(model.ListingAvailable),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: claim listing %s", listingID)
		}
		if tag.RowsAffected() == 0 {
			var status string
			err := tx.QueryRow(ctx, `SELECT status FROM food_listings WHERE id = $1`, listingID).Scan(&status)
			if eris.Is(err, pgx.ErrNoRows) {
				return notFound("listing", listingID)
			}
			if err != nil {
				return eris.Wrapf(err, "postgres: lookup listing %s", listingID)
			}
			return &NotAvailableError{ListingID: listingID, Status: model.ListingStatus(status)}
		}

		var receiver *string
		if orgID != "" {
			receiver = &orgID
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO donation_transactions (id, food_listing_id, receiver_id, status, claimed_at, notes)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			t.ID, t.ListingID, receiver, string(t.Status), t.ClaimedAt, t.Notes,
		)
		return eris.Wrap(err, "postgres: insert transaction")
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	if err := s.pool.QueryRow(ctx, statsQuery).Scan(statsDest(&st)...); err != nil {
		return nil, eris.Wrap(err, "postgres: listing stats")
	}
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM organizations WHERE is_active`).Scan(&st.Organizations)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: organization stats")
	}
	return &st, nil
}

func scanPgListing(row pgx.Row) (*model.Listing, error) {
	var l model.Listing
	err := row.Scan(
		&l.ID, &l.DonorName, &l.DonorContact, &l.FoodName, &l.Description, &l.Quantity, &l.Unit,
		&l.ExpiryDate, &l.FoodType, &l.Location.Lat, &l.Location.Lng, &l.Location.Address,
		&l.StorageCondition, &l.Packaging, &l.ImageURL, &l.AI.Status, &l.AI.Confidence,
		&l.AI.Reason, &l.AI.Tier, &l.AI.ModelID, &l.Status, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
