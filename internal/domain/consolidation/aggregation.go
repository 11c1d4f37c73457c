package consolidation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/domain/money"
)

// Preview resumen monetario de una consolidación. Es a la vez la vista
// previa que consume la UI y el payload de envío: ambos caminos comparten
// Aggregate, así que lo previsualizado coincide exactamente con lo enviado.
type Preview struct {
	DocumentID    string
	Period        Period
	NetTotal      decimal.Decimal // monto sin impuesto
	TaxTotal      decimal.Decimal
	RoundingTotal decimal.Decimal
	GrandTotal    decimal.Decimal // total a pagar
	MemberCount   int
	// MemberInvoiceIDs en el orden definitivo de envío (más antigua primero
	// por fecha de creación; desempate por ID para que sea determinista).
	MemberInvoiceIDs []string
}

// IsEmpty indica una vista previa sin miembros (el envío se bloquea aguas
// arriba cuando no hay facturas).
func (p *Preview) IsEmpty() bool { return p.MemberCount == 0 }

// Aggregate reduce las facturas seleccionadas a un Preview del período.
// Determinista: el mismo input produce siempre los mismos totales y el mismo
// orden de miembros. Una lista vacía produce un preview en ceros, no un error.
func Aggregate(period Period, invoices []*entity.Invoice) *Preview {
	members := make([]*entity.Invoice, len(invoices))
	copy(members, invoices)
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].CreatedAt.Equal(members[j].CreatedAt) {
			return members[i].ID < members[j].ID
		}
		return members[i].CreatedAt.Before(members[j].CreatedAt)
	})

	memberIDs := make([]string, len(members))
	for i, inv := range members {
		memberIDs[i] = inv.ID
	}

	net := money.SumBy(members, netContribution)

	// Impuesto: se prefiere el impuesto a nivel de línea; solo si ninguna
	// factura del conjunto trae impuesto en líneas se cae a los campos de
	// cabecera.
	var tax decimal.Decimal
	if anyLineTax(members) {
		tax = money.SumBy(members, lineTaxContribution)
	} else {
		tax = money.SumBy(members, func(inv *entity.Invoice) decimal.Decimal { return inv.TaxTotal })
	}

	rounding := money.SumBy(members, func(inv *entity.Invoice) decimal.Decimal { return inv.Rounding })
	grand := money.SumBy(members, func(inv *entity.Invoice) decimal.Decimal { return inv.GrandTotal })

	return &Preview{
		DocumentID:       period.DocumentID(),
		Period:           period,
		NetTotal:         money.Round(net),
		TaxTotal:         money.Round(tax),
		RoundingTotal:    money.Round(rounding),
		GrandTotal:       money.Round(grand),
		MemberCount:      len(members),
		MemberInvoiceIDs: memberIDs,
	}
}

// netContribution aporte sin impuesto de una factura. Con líneas presentes
// se recalcula línea a línea (excluyendo subtotales); cuando una línea no
// tiene cantidad (fees, descuentos sin precio unitario natural) se toma su
// total almacenado. Sin líneas se usa el neto de cabecera.
func netContribution(inv *entity.Invoice) decimal.Decimal {
	if len(inv.Lines) == 0 {
		return inv.NetTotal
	}
	var net decimal.Decimal
	for _, line := range inv.Lines {
		if line.IsSubtotal {
			continue
		}
		if line.Quantity.IsZero() {
			net = net.Add(money.Round(line.Total))
			continue
		}
		net = net.Add(money.Multiply(line.UnitPrice, line.Quantity))
	}
	return net
}

func lineTaxContribution(inv *entity.Invoice) decimal.Decimal {
	var tax decimal.Decimal
	for _, line := range inv.Lines {
		if line.IsSubtotal {
			continue
		}
		tax = tax.Add(money.Round(line.Tax))
	}
	return tax
}

func anyLineTax(invoices []*entity.Invoice) bool {
	for _, inv := range invoices {
		for _, line := range inv.Lines {
			if !line.Tax.IsZero() {
				return true
			}
		}
	}
	return false
}
