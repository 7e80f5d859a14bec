package repo

import (
	"context"
	"errors"
	"time"

	"github.com/gotd/td/session"
	"github.com/jackc/pgx/v5"

	"social-pipeline/internal/infra/metrics"
)

// LoadMTProtoSession загружает сохранённую MTProto-сессию сборщика.
func (p *Postgres) LoadMTProtoSession(ctx context.Context, name string) ([]byte, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	if name == "" {
		name = "default"
	}

	var data []byte
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT data FROM mtproto_sessions WHERE name = $1`, name).Scan(&data)
	metrics.ObserveNetworkRequest("postgres", "mtproto_sessions_load", "mtproto_sessions", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), data...), nil
}

// StoreMTProtoSession сохраняет MTProto-сессию сборщика.
func (p *Postgres) StoreMTProtoSession(ctx context.Context, name string, data []byte) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	if name == "" {
		name = "default"
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO mtproto_sessions (name, data, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
`, name, append([]byte(nil), data...))
	metrics.ObserveNetworkRequest("postgres", "mtproto_sessions_store", "mtproto_sessions", start, err)
	return err
}

// SessionStorage адаптирует Postgres к session.Storage из gotd.
type SessionStorage struct {
	repo *Postgres
	name string
}

var _ session.Storage = (*SessionStorage)(nil)

// NewSessionStorage создаёт хранилище сессии с указанным именем.
func NewSessionStorage(repo *Postgres, name string) *SessionStorage {
	return &SessionStorage{repo: repo, name: name}
}

// LoadSession реализует session.Storage.
func (s *SessionStorage) LoadSession(ctx context.Context) ([]byte, error) {
	return s.repo.LoadMTProtoSession(ctx, s.name)
}

// StoreSession реализует session.Storage.
func (s *SessionStorage) StoreSession(ctx context.Context, data []byte) error {
	return s.repo.StoreMTProtoSession(ctx, s.name, data)
}
