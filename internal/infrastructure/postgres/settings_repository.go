package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tu-usuario/facturacion-pro/internal/application/einvoice"
	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
)

var _ repository.SettingsRepository = (*SettingsRepo)(nil)
var _ einvoice.CompanyProvider = (*SettingsRepo)(nil)

// SettingsRepo persistencia del toggle de consolidación automática por
// empresa. También actúa como CompanyProvider del scheduler: las empresas a
// recorrer son las que tienen el toggle activo.
type SettingsRepo struct {
	q Querier
}

// NewSettingsRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSettingsRepository(q Querier) *SettingsRepo {
	return &SettingsRepo{q: q}
}

// GetAutoConsolidationEnabled devuelve el toggle de la empresa. Sin fila
// registrada el valor por defecto es false.
func (r *SettingsRepo) GetAutoConsolidationEnabled(ctx context.Context, companyID string) (bool, error) {
	var enabled bool
	err := r.q.QueryRow(ctx,
		`SELECT auto_consolidation_enabled FROM company_settings WHERE company_id = $1`,
		companyID,
	).Scan(&enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get company settings: %w", err)
	}
	return enabled, nil
}

// SetAutoConsolidationEnabled inserta o actualiza el toggle.
func (r *SettingsRepo) SetAutoConsolidationEnabled(ctx context.Context, companyID string, enabled bool) error {
	query := `
		INSERT INTO company_settings (company_id, auto_consolidation_enabled, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (company_id) DO UPDATE SET
			auto_consolidation_enabled = EXCLUDED.auto_consolidation_enabled,
			updated_at                 = NOW()`
	if _, err := r.q.Exec(ctx, query, companyID, enabled); err != nil {
		return fmt.Errorf("set company settings: %w", err)
	}
	return nil
}

// ListAutoConsolidationCompanies devuelve las empresas con el toggle activo.
func (r *SettingsRepo) ListAutoConsolidationCompanies(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx,
		`SELECT company_id FROM company_settings WHERE auto_consolidation_enabled ORDER BY company_id`)
	if err != nil {
		return nil, fmt.Errorf("list auto consolidation companies: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan company id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
