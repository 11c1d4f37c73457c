package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/tu-usuario/facturacion-pro/internal/domain/consolidation"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
// El motor de consolidación solo lee facturas y muta su vínculo con la
// consolidada; su emisión pertenece al subsistema de facturación.
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

// ListByPeriod devuelve las facturas cuya fecha de emisión cae en el período
// (año, mes) interpretado en la zona de negocio, con sus líneas y con el
// estado denormalizado de la consolidada a la que pertenecen. El SQL acota
// por rango de timestamps; la elegibilidad fina la decide el dominio.
func (r *InvoiceRepo) ListByPeriod(ctx context.Context, companyID string, year, month int) ([]*entity.Invoice, error) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, consolidation.BusinessTimeZone)
	end := start.AddDate(0, 1, 0)

	query := `
		SELECT i.id, i.company_id, i.customer_id, i.number, i.issue_date,
		       i.net_total, i.tax_total, i.rounding, i.grand_total, i.status,
		       i.consolidated_invoice_id, c.status,
		       i.created_at, i.updated_at
		FROM invoices i
		LEFT JOIN consolidated_invoices c
		       ON c.id = i.consolidated_invoice_id AND c.company_id = i.company_id
		WHERE i.company_id = $1 AND i.issue_date >= $2 AND i.issue_date < $3
		ORDER BY i.created_at, i.id`
	rows, err := r.q.Query(ctx, query, companyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list invoices by period: %w", err)
	}
	defer rows.Close()

	var invoices []*entity.Invoice
	byID := make(map[string]*entity.Invoice)
	for rows.Next() {
		var inv entity.Invoice
		var consolidatedID, consolidatedStatus *string
		if err := rows.Scan(
			&inv.ID, &inv.CompanyID, &inv.CustomerID, &inv.Number, &inv.IssueDate,
			&inv.NetTotal, &inv.TaxTotal, &inv.Rounding, &inv.GrandTotal, &inv.Status,
			&consolidatedID, &consolidatedStatus,
			&inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		inv.ConsolidatedInvoiceID = orEmpty(consolidatedID)
		inv.ConsolidatedStatus = orEmpty(consolidatedStatus)
		invoices = append(invoices, &inv)
		byID[inv.ID] = &inv
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	if len(invoices) == 0 {
		return invoices, nil
	}

	ids := make([]string, 0, len(invoices))
	for _, inv := range invoices {
		ids = append(ids, inv.ID)
	}
	if err := r.loadLines(ctx, byID, ids); err != nil {
		return nil, err
	}
	return invoices, nil
}

// loadLines carga las líneas de todas las facturas en un solo query.
func (r *InvoiceRepo) loadLines(ctx context.Context, byID map[string]*entity.Invoice, ids []string) error {
	query := `
		SELECT id, invoice_id, description, quantity, unit_price, total, tax, is_subtotal
		FROM invoice_lines
		WHERE invoice_id = ANY($1)
		ORDER BY invoice_id, id`
	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("list invoice lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line entity.InvoiceLine
		if err := rows.Scan(
			&line.ID, &line.InvoiceID, &line.Description, &line.Quantity,
			&line.UnitPrice, &line.Total, &line.Tax, &line.IsSubtotal,
		); err != nil {
			return fmt.Errorf("scan invoice line: %w", err)
		}
		if inv, ok := byID[line.InvoiceID]; ok {
			inv.Lines = append(inv.Lines, &line)
		}
	}
	return rows.Err()
}

// LinkToConsolidation marca las facturas como miembros de la consolidada.
// El ID de consolidada (CON-YYYYMM) se repite entre empresas, así que ambas
// cláusulas filtran por company_id.
func (r *InvoiceRepo) LinkToConsolidation(ctx context.Context, companyID string, invoiceIDs []string, consolidatedID string) error {
	query := `
		UPDATE invoices
		SET consolidated_invoice_id = $3, updated_at = NOW()
		WHERE company_id = $1 AND id = ANY($2)`
	tag, err := r.q.Exec(ctx, query, companyID, invoiceIDs, consolidatedID)
	if err != nil {
		return fmt.Errorf("link invoices to consolidation: %w", err)
	}
	if int(tag.RowsAffected()) != len(invoiceIDs) {
		return fmt.Errorf("link invoices to consolidation: %d de %d facturas enlazadas", tag.RowsAffected(), len(invoiceIDs))
	}
	return nil
}

// ReleaseFromConsolidation desvincula a todas las miembro de la consolidada
// de la empresa.
func (r *InvoiceRepo) ReleaseFromConsolidation(ctx context.Context, companyID string, consolidatedID string) error {
	query := `
		UPDATE invoices
		SET consolidated_invoice_id = NULL, updated_at = NOW()
		WHERE company_id = $1 AND consolidated_invoice_id = $2`
	if _, err := r.q.Exec(ctx, query, companyID, consolidatedID); err != nil {
		return fmt.Errorf("release invoices from consolidation: %w", err)
	}
	return nil
}
