package repository

import (
	"context"

	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
)

// InvoiceRepository puerto de lectura/enlace de facturas individuales. El
// motor de consolidación nunca crea ni emite facturas: las consume en solo
// lectura y solo muta su vínculo con una consolidada.
type InvoiceRepository interface {
	// ListByPeriod devuelve las facturas candidatas de la empresa cuya fecha
	// de emisión cae en (year, month) de la zona de negocio, con sus líneas
	// y con el estado de la consolidada a la que pertenecen (denormalizado).
	// El filtrado de elegibilidad es responsabilidad del dominio, no del SQL.
	ListByPeriod(ctx context.Context, companyID string, year int, month int) ([]*entity.Invoice, error)

	// LinkToConsolidation marca las facturas de la empresa como miembros de
	// la consolidada. Los IDs de factura y de consolidada solo son únicos
	// por empresa, así que el companyID forma parte de la clave.
	LinkToConsolidation(ctx context.Context, companyID string, invoiceIDs []string, consolidatedID string) error

	// ReleaseFromConsolidation libera a las miembro de una consolidada
	// cancelada: vuelven al pool elegible de períodos futuros.
	ReleaseFromConsolidation(ctx context.Context, companyID string, consolidatedID string) error
}
