package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tu-usuario/facturacion-pro/internal/application/einvoice"
	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
)

var _ einvoice.ConsolidationTxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunConsolidation inicia una transacción con repos de facturas y
// consolidadas atados a la tx, y hace Commit o Rollback. El documento
// consolidado y los enlaces de sus miembros viven o mueren juntos.
func (r *TxRunner) RunConsolidation(ctx context.Context, fn func(
	invoiceRepo repository.InvoiceRepository,
	consolidatedRepo repository.ConsolidatedInvoiceRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	invoiceRepo := NewInvoiceRepository(tx)
	consolidatedRepo := NewConsolidatedInvoiceRepository(tx)

	if err := fn(invoiceRepo, consolidatedRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
