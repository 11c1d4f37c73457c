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

var _ repository.ConsolidatedInvoiceRepository = (*ConsolidatedInvoiceRepo)(nil)

// ConsolidatedInvoiceRepo implementación de ConsolidatedInvoiceRepository
// (usable con pool o tx).
type ConsolidatedInvoiceRepo struct {
	q Querier
}

// NewConsolidatedInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewConsolidatedInvoiceRepository(q Querier) *ConsolidatedInvoiceRepo {
	return &ConsolidatedInvoiceRepo{q: q}
}

const consolidatedColumns = `
	id, company_id, year, month, member_invoice_ids,
	net_total, tax_total, rounding_total, grand_total,
	status, submission_uid, document_uuid, long_id, validated_at,
	cancel_reason, rejected_detail, created_at, updated_at`

// Create persiste el documento. El ID es determinista por período: tras una
// consolidación CANCELLED o INVALID el reenvío reutiliza la fila, así que el
// insert es un upsert sobre (company_id, id). Los campos de cancelación y
// rechazo anteriores se pisan con los del envío nuevo.
func (r *ConsolidatedInvoiceRepo) Create(ctx context.Context, doc *entity.ConsolidatedInvoice) error {
	query := `
		INSERT INTO consolidated_invoices (` + consolidatedColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (company_id, id) DO UPDATE SET
			member_invoice_ids = EXCLUDED.member_invoice_ids,
			net_total          = EXCLUDED.net_total,
			tax_total          = EXCLUDED.tax_total,
			rounding_total     = EXCLUDED.rounding_total,
			grand_total        = EXCLUDED.grand_total,
			status             = EXCLUDED.status,
			submission_uid     = EXCLUDED.submission_uid,
			document_uuid      = EXCLUDED.document_uuid,
			long_id            = EXCLUDED.long_id,
			validated_at       = EXCLUDED.validated_at,
			cancel_reason      = EXCLUDED.cancel_reason,
			rejected_detail    = EXCLUDED.rejected_detail,
			updated_at         = EXCLUDED.updated_at`
	_, err := r.q.Exec(ctx, query,
		doc.ID, doc.CompanyID, doc.Year, int(doc.Month), doc.MemberInvoiceIDs,
		doc.NetTotal, doc.TaxTotal, doc.RoundingTotal, doc.GrandTotal,
		doc.Status, nullIfEmpty(doc.SubmissionUID), nullIfEmpty(doc.DocumentUUID),
		nullIfEmpty(doc.LongID), doc.ValidatedAt,
		nullIfEmpty(doc.CancelReason), nullIfEmpty(doc.RejectedDetail),
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("el período ya tiene consolidada: %w", err)
		}
		return fmt.Errorf("insert consolidated invoice: %w", err)
	}
	return nil
}

// Update actualiza solo los campos de ciclo de vida del documento.
func (r *ConsolidatedInvoiceRepo) Update(ctx context.Context, doc *entity.ConsolidatedInvoice) error {
	query := `
		UPDATE consolidated_invoices
		SET status          = $3,
		    long_id         = COALESCE($4, long_id),
		    validated_at    = COALESCE($5, validated_at),
		    cancel_reason   = COALESCE($6, cancel_reason),
		    rejected_detail = COALESCE($7, rejected_detail),
		    updated_at      = $8
		WHERE company_id = $1 AND id = $2`
	_, err := r.q.Exec(ctx, query,
		doc.CompanyID, doc.ID, doc.Status,
		nullIfEmpty(doc.LongID), doc.ValidatedAt,
		nullIfEmpty(doc.CancelReason), nullIfEmpty(doc.RejectedDetail),
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update consolidated invoice: %w", err)
	}
	return nil
}

// GetByID obtiene el documento por identificador dentro de la empresa.
// Devuelve nil (sin error) si no existe.
func (r *ConsolidatedInvoiceRepo) GetByID(ctx context.Context, companyID, id string) (*entity.ConsolidatedInvoice, error) {
	query := `SELECT ` + consolidatedColumns + `
		FROM consolidated_invoices WHERE company_id = $1 AND id = $2`
	doc, err := r.scanOne(r.q.QueryRow(ctx, query, companyID, id))
	if err != nil {
		return nil, fmt.Errorf("get consolidated invoice %s: %w", id, err)
	}
	return doc, nil
}

// GetByPeriod devuelve la consolidada del período o nil si no existe.
func (r *ConsolidatedInvoiceRepo) GetByPeriod(ctx context.Context, companyID string, year, month int) (*entity.ConsolidatedInvoice, error) {
	query := `SELECT ` + consolidatedColumns + `
		FROM consolidated_invoices WHERE company_id = $1 AND year = $2 AND month = $3`
	doc, err := r.scanOne(r.q.QueryRow(ctx, query, companyID, year, month))
	if err != nil {
		return nil, fmt.Errorf("get consolidated invoice %04d-%02d: %w", year, month, err)
	}
	return doc, nil
}

// ListByYear historial del año, más reciente primero.
func (r *ConsolidatedInvoiceRepo) ListByYear(ctx context.Context, companyID string, year int) ([]*entity.ConsolidatedInvoice, error) {
	query := `SELECT ` + consolidatedColumns + `
		FROM consolidated_invoices
		WHERE company_id = $1 AND year = $2
		ORDER BY month DESC`
	rows, err := r.q.Query(ctx, query, companyID, year)
	if err != nil {
		return nil, fmt.Errorf("list consolidated invoices: %w", err)
	}
	defer rows.Close()

	var docs []*entity.ConsolidatedInvoice
	for rows.Next() {
		doc, err := scanConsolidated(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consolidated invoice: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *ConsolidatedInvoiceRepo) scanOne(row pgx.Row) (*entity.ConsolidatedInvoice, error) {
	doc, err := scanConsolidated(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return doc, err
}

// scanConsolidated lee una fila con el orden de consolidatedColumns.
func scanConsolidated(row pgx.Row) (*entity.ConsolidatedInvoice, error) {
	var doc entity.ConsolidatedInvoice
	var month int
	var submissionUID, documentUUID, longID, cancelReason, rejectedDetail *string
	err := row.Scan(
		&doc.ID, &doc.CompanyID, &doc.Year, &month, &doc.MemberInvoiceIDs,
		&doc.NetTotal, &doc.TaxTotal, &doc.RoundingTotal, &doc.GrandTotal,
		&doc.Status, &submissionUID, &documentUUID, &longID, &doc.ValidatedAt,
		&cancelReason, &rejectedDetail, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Month = time.Month(month)
	doc.SubmissionUID = orEmpty(submissionUID)
	doc.DocumentUUID = orEmpty(documentUUID)
	doc.LongID = orEmpty(longID)
	doc.CancelReason = orEmpty(cancelReason)
	doc.RejectedDetail = orEmpty(rejectedDetail)
	return &doc, nil
}
