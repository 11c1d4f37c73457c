package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
)

var _ repository.AutoConsolidationRepository = (*AutoConsolidationRepo)(nil)

// AutoConsolidationRepo implementación de AutoConsolidationRepository.
type AutoConsolidationRepo struct {
	q Querier
}

// NewAutoConsolidationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAutoConsolidationRepository(q Querier) *AutoConsolidationRepo {
	return &AutoConsolidationRepo{q: q}
}

const attemptColumns = `
	id, company_id, year, month, status, attempts,
	last_attempt_at, next_attempt_at, consolidated_invoice_id, last_error,
	created_at, updated_at`

// GetByPeriod devuelve el intento del período o nil si nunca se agendó.
func (r *AutoConsolidationRepo) GetByPeriod(ctx context.Context, companyID string, year, month int) (*entity.AutoConsolidationAttempt, error) {
	query := `SELECT ` + attemptColumns + `
		FROM auto_consolidation_attempts
		WHERE company_id = $1 AND year = $2 AND month = $3`
	attempt, err := scanAttempt(r.q.QueryRow(ctx, query, companyID, year, month))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get auto consolidation attempt: %w", err)
	}
	return attempt, nil
}

// Upsert inserta o actualiza el intento del período. La clave única
// (company_id, year, month) garantiza a lo más un registro por período.
func (r *AutoConsolidationRepo) Upsert(ctx context.Context, attempt *entity.AutoConsolidationAttempt) error {
	query := `
		INSERT INTO auto_consolidation_attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (company_id, year, month) DO UPDATE SET
			status                  = EXCLUDED.status,
			attempts                = EXCLUDED.attempts,
			last_attempt_at         = EXCLUDED.last_attempt_at,
			next_attempt_at         = EXCLUDED.next_attempt_at,
			consolidated_invoice_id = EXCLUDED.consolidated_invoice_id,
			last_error              = EXCLUDED.last_error,
			updated_at              = EXCLUDED.updated_at`
	_, err := r.q.Exec(ctx, query,
		attempt.ID, attempt.CompanyID, attempt.Year, int(attempt.Month),
		attempt.Status, attempt.Attempts,
		attempt.LastAttemptAt, attempt.NextAttemptAt,
		nullIfEmpty(attempt.ConsolidatedInvoiceID), nullIfEmpty(attempt.LastError),
		attempt.CreatedAt, attempt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert auto consolidation attempt: %w", err)
	}
	return nil
}

// ListOpen devuelve los intentos no terminales de la empresa.
func (r *AutoConsolidationRepo) ListOpen(ctx context.Context, companyID string) ([]*entity.AutoConsolidationAttempt, error) {
	query := `SELECT ` + attemptColumns + `
		FROM auto_consolidation_attempts
		WHERE company_id = $1 AND status IN ($2, $3, $4)
		ORDER BY year, month`
	rows, err := r.q.Query(ctx, query, companyID,
		entity.AttemptStatusPending, entity.AttemptStatusProcessing, entity.AttemptStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("list open attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*entity.AutoConsolidationAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

func scanAttempt(row pgx.Row) (*entity.AutoConsolidationAttempt, error) {
	var a entity.AutoConsolidationAttempt
	var month int
	var consolidatedID, lastError *string
	err := row.Scan(
		&a.ID, &a.CompanyID, &a.Year, &month, &a.Status, &a.Attempts,
		&a.LastAttemptAt, &a.NextAttemptAt, &consolidatedID, &lastError,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Month = time.Month(month)
	a.ConsolidatedInvoiceID = orEmpty(consolidatedID)
	a.LastError = orEmpty(lastError)
	return &a, nil
}
