// Package mysql implements the repositories on MySQL (go-sql-driver/mysql).
// The DSN must set parseTime=true and loc=UTC.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"

	"review_hub/internal/domain"
)

const errDupEntry = 1062

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func isDuplicate(err error) bool {
	var me *mysqldrv.MySQLError
	return errors.As(err, &me) && me.Number == errDupEntry
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// ---- integrations ----

func scanIntegration(s rowScanner) (domain.Integration, error) {
	var in domain.Integration
	var platform string
	var lastSync sql.NullTime
	err := s.Scan(
		&in.ID, &in.BusinessID, &platform, &in.ExternalAccountID, &in.ExternalLocationID,
		&in.AccessToken, &in.RefreshToken, &in.ExpiresAt, &in.Scopes, &in.Active, &in.ReconnectRequired,
		&in.ConnectedAt, &lastSync, &in.DisplayName, &in.Address,
	)
	if err != nil {
		return domain.Integration{}, err
	}
	in.Platform = domain.Platform(platform)
	in.ExpiresAt = in.ExpiresAt.UTC()
	in.ConnectedAt = in.ConnectedAt.UTC()
	in.LastSyncAt = timePtr(lastSync)
	return in, nil
}

func (r *Repo) GetActive(ctx context.Context, businessID string, p domain.Platform) (domain.Integration, error) {
	in, err := scanIntegration(r.db.QueryRowContext(ctx, getActiveIntegrationSQL, businessID, string(p)))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Integration{}, domain.ErrNotFound
	}
	return in, err
}

func (r *Repo) ListActive(ctx context.Context, businessID string) ([]domain.Integration, error) {
	rows, err := r.db.QueryContext(ctx, listActiveIntegrationsSQL, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Integration
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *Repo) ListActiveBusinessIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, listActiveBusinessesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SaveActive replaces the grant of the active row for (business, platform),
// or inserts one. A concurrent insert that wins the unique key is retried
// as a replace.
func (r *Repo) SaveActive(ctx context.Context, in domain.Integration) (domain.Integration, error) {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var out domain.Integration
		out, err = r.saveActive(ctx, in)
		if err == nil {
			return out, nil
		}
		if !isDuplicate(err) {
			return domain.Integration{}, err
		}
	}
	return domain.Integration{}, err
}

func (r *Repo) saveActive(ctx context.Context, in domain.Integration) (domain.Integration, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Integration{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var existingID string
	var lastSync sql.NullTime
	err = tx.QueryRowContext(ctx, lockActiveIntegrationSQL, in.BusinessID, string(in.Platform)).Scan(&existingID, &lastSync)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, insertIntegrationSQL,
			in.ID, in.BusinessID, string(in.Platform), in.ExternalAccountID, in.ExternalLocationID,
			in.AccessToken, in.RefreshToken, in.ExpiresAt.UTC(), in.Scopes,
			in.ConnectedAt.UTC(), in.DisplayName, in.Address,
		)
		in.LastSyncAt = nil
	case err == nil:
		in.ID = existingID
		in.LastSyncAt = timePtr(lastSync)
		_, err = tx.ExecContext(ctx, replaceGrantSQL,
			in.ExternalAccountID, in.ExternalLocationID, in.AccessToken, in.RefreshToken,
			in.ExpiresAt.UTC(), in.Scopes, in.ConnectedAt.UTC(), in.DisplayName, in.Address,
			existingID,
		)
	}
	if err != nil {
		return domain.Integration{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Integration{}, err
	}
	in.Active = true
	in.ReconnectRequired = false
	return in, nil
}

// execOne runs an UPDATE by primary key and maps zero affected rows to ErrNotFound.
func (r *Repo) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	// MySQL reports 0 for matched-but-unchanged rows; clientFoundRows in the DSN avoids that.
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repo) UpdateTokens(ctx context.Context, in domain.Integration) error {
	return r.execOne(ctx, updateTokensSQL, in.AccessToken, in.RefreshToken, in.ExpiresAt.UTC(), in.Scopes, in.ID)
}

func (r *Repo) TouchLastSync(ctx context.Context, id string, at time.Time) error {
	return r.execOne(ctx, touchLastSyncSQL, at.UTC(), id)
}

func (r *Repo) MarkReconnectRequired(ctx context.Context, id string) error {
	return r.execOne(ctx, markReconnectSQL, id)
}

func (r *Repo) Deactivate(ctx context.Context, id string) error {
	return r.execOne(ctx, deactivateSQL, id)
}

// DeleteBusinessData removes the business's integrations, reviews and metrics atomically.
func (r *Repo) DeleteBusinessData(ctx context.Context, businessID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM review_metrics WHERE business_id = ?`,
		`DELETE FROM reviews WHERE business_id = ?`,
		`DELETE FROM integrations WHERE business_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, businessID); err != nil {
			return err
		}
	}
	return tx.Commit()
}
