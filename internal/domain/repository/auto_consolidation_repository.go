package repository

import (
	"context"

	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
)

// AutoConsolidationRepository puerto de persistencia de los intentos de
// consolidación automática. Hay a lo más un intento por (empresa, año, mes);
// los reintentos mutan el mismo registro.
type AutoConsolidationRepository interface {
	// GetByPeriod devuelve el intento del período o nil si nunca se agendó.
	GetByPeriod(ctx context.Context, companyID string, year int, month int) (*entity.AutoConsolidationAttempt, error)

	// Upsert inserta o actualiza el intento del período (clave única
	// company_id, year, month).
	Upsert(ctx context.Context, attempt *entity.AutoConsolidationAttempt) error

	// ListOpen devuelve los intentos no terminales (PENDING, PROCESSING,
	// FAILED) de la empresa, para que el scheduler expire los de ventanas ya
	// cerradas.
	ListOpen(ctx context.Context, companyID string) ([]*entity.AutoConsolidationAttempt, error)
}

// SettingsRepository toggle global de consolidación automática, persistido
// externamente (tabla de settings). Es configuración explícita que se
// inyecta al scheduler, no estado global ambiente.
type SettingsRepository interface {
	GetAutoConsolidationEnabled(ctx context.Context, companyID string) (bool, error)
	SetAutoConsolidationEnabled(ctx context.Context, companyID string, enabled bool) error
}
