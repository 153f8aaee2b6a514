// Package settings holds the runtime maintenance flag shared by every instance.
package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/blanball/backend/internal/fanout"
)

const maintenanceKey = "maintenance"

// Maintenance is the current flag and its version. Version grows by one on every change.
type Maintenance struct {
	Enabled   bool      `json:"isMaintenance"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store reads and writes the flag.
type Store interface {
	GetMaintenance(ctx context.Context) (Maintenance, error)
	SetMaintenance(ctx context.Context, enabled bool) (Maintenance, error)
}

// Broadcaster pushes a message to every client of the general room.
type Broadcaster interface {
	PushGeneral(ctx context.Context, messageType string, data interface{})
}

// Repository keeps settings in app_settings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a settings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetMaintenance returns the stored flag.
func (r *Repository) GetMaintenance(ctx context.Context) (Maintenance, error) {
	var m Maintenance
	err := r.pool.QueryRow(ctx, `SELECT value, version, updated_at FROM app_settings WHERE key = $1`, maintenanceKey).
		Scan(&m.Enabled, &m.Version, &m.UpdatedAt)
	if err != nil {
		return m, fmt.Errorf("read maintenance: %w", err)
	}
	return m, nil
}

// SetMaintenance stores the flag and bumps the version in one statement.
func (r *Repository) SetMaintenance(ctx context.Context, enabled bool) (Maintenance, error) {
	const q = `INSERT INTO app_settings (key, value) VALUES ($1, to_jsonb($2::boolean))
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, version = app_settings.version + 1, updated_at = NOW()
		RETURNING value, version, updated_at`
	var m Maintenance
	if err := r.pool.QueryRow(ctx, q, maintenanceKey, enabled).Scan(&m.Enabled, &m.Version, &m.UpdatedAt); err != nil {
		return m, fmt.Errorf("write maintenance: %w", err)
	}
	return m, nil
}

// Service reads and changes the maintenance flag.
type Service struct {
	store   Store
	push    Broadcaster
	version string
	logger  *zap.Logger
}

// NewService creates the settings service. version is the deployed app version.
func NewService(store Store, push Broadcaster, version string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, push: push, version: version, logger: logger}
}

// Maintenance returns the current flag.
func (s *Service) Maintenance(ctx context.Context) (Maintenance, error) {
	return s.store.GetMaintenance(ctx)
}

// SetMaintenance changes the flag and tells every connected client.
func (s *Service) SetMaintenance(ctx context.Context, enabled bool) (Maintenance, error) {
	m, err := s.store.SetMaintenance(ctx, enabled)
	if err != nil {
		return m, err
	}
	s.logger.Info("maintenance changed", zap.Bool("enabled", m.Enabled), zap.Int64("version", m.Version))
	if s.push != nil {
		s.push.PushGeneral(ctx, fanout.MsgChangeMaintenance, map[string]interface{}{
			"maintenance": map[string]interface{}{"type": m.Enabled, "version": m.Version},
		})
	}
	return m, nil
}

// Version returns the deployed app version.
func (s *Service) Version() string {
	return s.version
}
