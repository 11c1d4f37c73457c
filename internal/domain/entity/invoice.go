package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de una factura individual. El motor de consolidación consume las
// facturas en solo lectura; su emisión pertenece al subsistema de facturación.
const (
	InvoiceStatusIssued    = "ISSUED"
	InvoiceStatusCancelled = "CANCELLED"
)

// Invoice cabecera de una factura individual candidata a consolidación.
type Invoice struct {
	ID         string
	CompanyID  string
	CustomerID string
	Number     string
	IssueDate  time.Time // fecha de emisión (determina el período fiscal)
	NetTotal   decimal.Decimal
	TaxTotal   decimal.Decimal
	Rounding   decimal.Decimal // ajuste de redondeo al sen más cercano
	GrandTotal decimal.Decimal // total a pagar
	Status     string
	// ConsolidatedInvoiceID referencia a la consolidada en la que la factura
	// ya fue incluida (vacío si nunca fue consolidada).
	ConsolidatedInvoiceID string
	// ConsolidatedStatus estado actual de esa consolidada (denormalizado en
	// la lectura vía JOIN). Permite que el resolutor de elegibilidad sea una
	// función pura: una factura bajo una consolidada Cancelled o Invalid
	// vuelve a ser elegible.
	ConsolidatedStatus string
	Lines              []*InvoiceLine
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// InvoiceLine línea de detalle de una factura.
type InvoiceLine struct {
	ID          string
	InvoiceID   string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal // total almacenado de la línea (fuente directa cuando Quantity = 0)
	Tax         decimal.Decimal
	// IsSubtotal marca líneas no valorizadas ("Other", "Discount", subtotales)
	// que se excluyen del aporte neto calculado línea a línea.
	IsSubtotal bool
}
