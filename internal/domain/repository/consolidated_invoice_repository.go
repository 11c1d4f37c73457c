package repository

import (
	"context"

	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
)

// ConsolidatedInvoiceRepository puerto de persistencia del documento
// consolidado. Update actualiza solo los campos de ciclo de vida (estado,
// long-id, timestamps, razón de cancelación): los totales y la lista de
// miembros son inmutables tras el envío.
type ConsolidatedInvoiceRepository interface {
	// Create persiste el documento. El identificador es determinista por
	// período, así que un reenvío tras una consolidación CANCELLED o INVALID
	// reutiliza la fila (upsert); el ciclo de vida garantiza que nunca se
	// pisa una consolidada VALID o PENDING.
	Create(ctx context.Context, doc *entity.ConsolidatedInvoice) error
	Update(ctx context.Context, doc *entity.ConsolidatedInvoice) error

	// GetByID por identificador de documento (CON-AAAAMM) dentro de la empresa.
	GetByID(ctx context.Context, companyID, id string) (*entity.ConsolidatedInvoice, error)

	// GetByPeriod devuelve la consolidada del período o nil si no existe.
	// Las canceladas cuentan como existentes (el documento nunca se borra);
	// el chequeo de idempotencia mira el estado.
	GetByPeriod(ctx context.Context, companyID string, year int, month int) (*entity.ConsolidatedInvoice, error)

	// ListByYear historial del año, más reciente primero.
	ListByYear(ctx context.Context, companyID string, year int) ([]*entity.ConsolidatedInvoice, error)
}
