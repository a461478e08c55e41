// Package postgres implements the store ports on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mitchellh/mapstructure"

	"github.com/admaesmo/AidDiag/internal/config"
	"github.com/admaesmo/AidDiag/internal/core"
)

type Config struct {
	DSN string `mapstructure:"dsn"`
}

// FromStoreConfig decodes the inline store configuration section.
func FromStoreConfig(cfg config.StoreConfig) (Config, error) {
	var conf Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   &conf,
	})
	if err != nil {
		return Config{}, fmt.Errorf("creating decoder for postgres store config: %w", err)
	}
	if err := decoder.Decode(cfg.Config); err != nil {
		return Config{}, fmt.Errorf("decoding postgres store config: %w", err)
	}
	if conf.DSN == "" {
		return Config{}, fmt.Errorf("postgres store requires 'dsn'")
	}
	return conf, nil
}

type Store struct {
	pool *pgxpool.Pool
}

var (
	_ core.PrincipalStore = (*Store)(nil)
	_ core.IntakeStore    = (*Store)(nil)
	_ core.CaseStore      = (*Store)(nil)
	_ core.AuditStore     = (*Store)(nil)
)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func Connect(ctx context.Context, conf Config) (*Store, error) {
	pool, err := pgxpool.New(ctx, conf.DSN)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return NewStore(pool), nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS tenants (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS principals (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	email TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	mfa_enabled BOOLEAN NOT NULL DEFAULT FALSE,
	mfa_secret TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (tenant_id, email)
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_principals_tenant_email_lower
	ON principals (tenant_id, lower(email));

CREATE TABLE IF NOT EXISTS symptom_entries (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	patient_id UUID NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS ix_symptom_entries_tenant_patient_created
	ON symptom_entries (tenant_id, patient_id, created_at DESC);

CREATE TABLE IF NOT EXISTS predictions (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	patient_id UUID NOT NULL,
	symptom_entry_id UUID NOT NULL REFERENCES symptom_entries(id) ON DELETE CASCADE,
	model_version TEXT NOT NULL,
	score NUMERIC(6,5) NOT NULL,
	label TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS ix_predictions_tenant_patient_created
	ON predictions (tenant_id, patient_id, created_at DESC);

CREATE TABLE IF NOT EXISTS cases (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	patient_id UUID NOT NULL,
	assigned_to UUID,
	status TEXT NOT NULL DEFAULT 'open',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS ix_cases_tenant_assigned_status
	ON cases (tenant_id, assigned_to, status);

CREATE TABLE IF NOT EXISTS audit_events (
	id BIGSERIAL PRIMARY KEY,
	tenant_id UUID NOT NULL,
	actor_sub UUID NOT NULL,
	action TEXT NOT NULL,
	entity TEXT NOT NULL,
	entity_id TEXT,
	ts TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	meta JSONB
);
CREATE INDEX IF NOT EXISTS ix_audit_events_tenant_ts
	ON audit_events (tenant_id, ts DESC);
`

func (s *Store) GetOrCreateTenant(ctx context.Context, name string) (*core.Tenant, error) {
	var t core.Tenant
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, created_at FROM tenants WHERE name = $1
	`, name).Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err == nil {
		return &t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	t = core.Tenant{ID: uuid.New(), Name: name}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO tenants (id, name) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, created_at
	`, t.ID, t.Name).Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) FindPrincipalByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*core.Principal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, email, password_hash, role, active, mfa_enabled, COALESCE(mfa_secret, ''), created_at
		FROM principals
		WHERE tenant_id = $1 AND lower(email) = lower($2)
	`, tenantID, email)
	return scanPrincipal(row)
}

func (s *Store) GetPrincipal(ctx context.Context, id uuid.UUID) (*core.Principal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, email, password_hash, role, active, mfa_enabled, COALESCE(mfa_secret, ''), created_at
		FROM principals
		WHERE id = $1
	`, id)
	return scanPrincipal(row)
}

func scanPrincipal(row pgx.Row) (*core.Principal, error) {
	var p core.Principal
	err := row.Scan(&p.ID, &p.TenantID, &p.Email, &p.PasswordHash, &p.Role, &p.Active, &p.MFAEnabled, &p.MFASecret, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreatePrincipal(ctx context.Context, p *core.Principal) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO principals (id, tenant_id, email, password_hash, role, active, mfa_enabled, mfa_secret)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
		RETURNING created_at
	`, p.ID, p.TenantID, p.Email, p.PasswordHash, p.Role, p.Active, p.MFAEnabled, p.MFASecret).Scan(&p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return core.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) UpdatePrincipal(ctx context.Context, p *core.Principal) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE principals
		SET password_hash = $2, role = $3, active = $4, mfa_enabled = $5, mfa_secret = NULLIF($6, '')
		WHERE id = $1
	`, p.ID, p.PasswordHash, p.Role, p.Active, p.MFAEnabled, p.MFASecret)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) InsertSymptomEntry(ctx context.Context, e *core.SymptomEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO symptom_entries (id, tenant_id, patient_id, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, e.ID, e.TenantID, e.PatientID, e.Payload).Scan(&e.CreatedAt)
}

func (s *Store) GetSymptomEntry(ctx context.Context, id uuid.UUID) (*core.SymptomEntry, error) {
	var e core.SymptomEntry
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, patient_id, payload, created_at
		FROM symptom_entries
		WHERE id = $1
	`, id).Scan(&e.ID, &e.TenantID, &e.PatientID, &e.Payload, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (s *Store) ListSymptomEntries(
	ctx context.Context,
	tenantID, patientID uuid.UUID,
	limit int,
	cursor *time.Time,
) ([]core.SymptomEntry, int, *time.Time, error) {
	// the cursor bounds both the count and the page, so the total shrinks
	// as the caller pages through
	where := ` WHERE tenant_id = $1 AND patient_id = $2`
	args := []any{tenantID, patientID}
	if cursor != nil {
		where += ` AND created_at < $3`
		args = append(args, *cursor)
	}

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM symptom_entries`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, nil, err
	}

	query := `
		SELECT id, tenant_id, patient_id, payload, created_at
		FROM symptom_entries` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, nil, err
	}
	defer rows.Close()

	var items []core.SymptomEntry
	for rows.Next() {
		var e core.SymptomEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.PatientID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, 0, nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, nil, err
	}

	var next *time.Time
	if len(items) > limit {
		t := items[limit-1].CreatedAt
		next = &t
		items = items[:limit]
	}
	return items, total, next, nil
}

func (s *Store) SavePrediction(ctx context.Context, p *core.Prediction, ev *core.AuditEvent) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = tx.QueryRow(ctx, `
		INSERT INTO predictions (id, tenant_id, patient_id, symptom_entry_id, model_version, score, label)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, p.ID, p.TenantID, p.PatientID, p.SymptomEntryID, p.ModelVersion, p.Score, p.Label).Scan(&p.CreatedAt)
	if err != nil {
		return err
	}

	if ev != nil {
		ev.EntityID = p.ID.String()
		err = tx.QueryRow(ctx, `
			INSERT INTO audit_events (tenant_id, actor_sub, action, entity, entity_id, meta)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, ts
		`, ev.TenantID, ev.ActorSub, ev.Action, ev.Entity, ev.EntityID, ev.Meta).Scan(&ev.ID, &ev.Time)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) ListPredictions(
	ctx context.Context,
	tenantID, patientID uuid.UUID,
	limit, offset int,
) ([]core.Prediction, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM predictions
		WHERE tenant_id = $1 AND patient_id = $2
	`, tenantID, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, patient_id, symptom_entry_id, model_version, score, label, created_at
		FROM predictions
		WHERE tenant_id = $1 AND patient_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, tenantID, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []core.Prediction
	for rows.Next() {
		var p core.Prediction
		if err := rows.Scan(&p.ID, &p.TenantID, &p.PatientID, &p.SymptomEntryID, &p.ModelVersion, &p.Score, &p.Label, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (s *Store) CreateCase(ctx context.Context, c *core.Case) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO cases (id, tenant_id, patient_id, assigned_to, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, c.ID, c.TenantID, c.PatientID, c.AssignedTo, c.Status).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (s *Store) GetCase(ctx context.Context, id uuid.UUID) (*core.Case, error) {
	var c core.Case
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, patient_id, assigned_to, status, created_at, updated_at
		FROM cases
		WHERE id = $1
	`, id).Scan(&c.ID, &c.TenantID, &c.PatientID, &c.AssignedTo, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCases(ctx context.Context, tenantID, assignedTo uuid.UUID, status string) ([]core.Case, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, patient_id, assigned_to, status, created_at, updated_at
		FROM cases
		WHERE tenant_id = $1
		  AND ($2 = '00000000-0000-0000-0000-000000000000'::uuid OR assigned_to = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY updated_at DESC
	`, tenantID, assignedTo, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.Case
	for rows.Next() {
		var c core.Case
		if err := rows.Scan(&c.ID, &c.TenantID, &c.PatientID, &c.AssignedTo, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (s *Store) UpdateCaseStatus(ctx context.Context, id uuid.UUID, status string) (*core.Case, error) {
	var c core.Case
	err := s.pool.QueryRow(ctx, `
		UPDATE cases
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, tenant_id, patient_id, assigned_to, status, created_at, updated_at
	`, id, status).Scan(&c.ID, &c.TenantID, &c.PatientID, &c.AssignedTo, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) InsertAuditEvent(ctx context.Context, ev *core.AuditEvent) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO audit_events (tenant_id, actor_sub, action, entity, entity_id, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, ts
	`, ev.TenantID, ev.ActorSub, ev.Action, ev.Entity, ev.EntityID, ev.Meta).Scan(&ev.ID, &ev.Time)
}

func (s *Store) RecentAuditEvents(ctx context.Context, tenantID uuid.UUID, limit int) ([]core.AuditEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, actor_sub, action, entity, COALESCE(entity_id, ''), ts, meta
		FROM audit_events
		WHERE tenant_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.AuditEvent
	for rows.Next() {
		var ev core.AuditEvent
		if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.ActorSub, &ev.Action, &ev.Entity, &ev.EntityID, &ev.Time, &ev.Meta); err != nil {
			return nil, err
		}
		items = append(items, ev)
	}
	return items, rows.Err()
}
