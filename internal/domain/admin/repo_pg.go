package admin

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pneumo/pneumo/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type settingsRepoPG struct{ pool *pgxpool.Pool }

func NewSettingsRepoPG(pool *pgxpool.Pool) Repository {
	return &settingsRepoPG{pool: pool}
}

func (r *settingsRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const settingsCols = `smtp_host, smtp_port, smtp_username, smtp_password,
	from_address, notify_on_confirm, updated_at`

func (r *settingsRepoPG) Get(ctx context.Context) (*Settings, error) {
	var s Settings
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+settingsCols+` FROM settings WHERE id = 1`).
		Scan(&s.SMTPHost, &s.SMTPPort, &s.SMTPUsername, &s.SMTPPassword,
			&s.FromAddress, &s.NotifyOnConfirm, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// No row yet: return defaults without persisting them.
		return &Settings{SMTPPort: 587}, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepoPG) Save(ctx context.Context, s *Settings) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO settings (id, smtp_host, smtp_port, smtp_username, smtp_password,
			from_address, notify_on_confirm, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			smtp_host = EXCLUDED.smtp_host,
			smtp_port = EXCLUDED.smtp_port,
			smtp_username = EXCLUDED.smtp_username,
			smtp_password = EXCLUDED.smtp_password,
			from_address = EXCLUDED.from_address,
			notify_on_confirm = EXCLUDED.notify_on_confirm,
			updated_at = NOW()
		RETURNING updated_at`,
		s.SMTPHost, s.SMTPPort, s.SMTPUsername, s.SMTPPassword,
		s.FromAddress, s.NotifyOnConfirm).
		Scan(&s.UpdatedAt)
}
