package consolidation_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/facturacion-pro/internal/domain/consolidation"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// itemized arma una factura con una sola línea valorizada (sin impuesto).
func itemized(id string, createdDay int, net string) *entity.Invoice {
	created := time.Date(2025, 3, createdDay, 9, 0, 0, 0, consolidation.BusinessTimeZone)
	return &entity.Invoice{
		ID:         id,
		IssueDate:  created,
		NetTotal:   dec(net),
		GrandTotal: dec(net),
		Status:     entity.InvoiceStatusIssued,
		CreatedAt:  created,
		Lines: []*entity.InvoiceLine{
			{ID: id + "-1", Quantity: dec("1"), UnitPrice: dec(net), Total: dec(net)},
		},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Escenario de referencia: tres facturas de marzo 2025 con netos 100.00,
// 250.50 y 99.49 (con líneas, sin impuesto) agregan a neto 449.99,
// impuesto 0.00, identificador CON-202503, 3 miembros.
// ──────────────────────────────────────────────────────────────────────────────

func TestAggregate_EscenarioMarzo2025(t *testing.T) {
	march := consolidation.Period{Year: 2025, Month: time.March}
	invoices := []*entity.Invoice{
		itemized("a", 1, "100.00"),
		itemized("b", 12, "250.50"),
		itemized("c", 28, "99.49"),
	}

	p := consolidation.Aggregate(march, invoices)

	assert.Equal(t, "CON-202503", p.DocumentID)
	assert.Equal(t, "449.99", p.NetTotal.StringFixed(2))
	assert.Equal(t, "0.00", p.TaxTotal.StringFixed(2))
	assert.Equal(t, 3, p.MemberCount)
}

// TestAggregate_Determinista: dos corridas con el mismo input producen
// totales idénticos y el mismo orden de miembros (más antigua primero).
func TestAggregate_Determinista(t *testing.T) {
	march := consolidation.Period{Year: 2025, Month: time.March}
	// Entrada deliberadamente desordenada
	invoices := []*entity.Invoice{
		itemized("c", 28, "99.49"),
		itemized("a", 1, "100.00"),
		itemized("b", 12, "250.50"),
	}

	p1 := consolidation.Aggregate(march, invoices)
	p2 := consolidation.Aggregate(march, invoices)

	require.Equal(t, p1.MemberInvoiceIDs, p2.MemberInvoiceIDs)
	assert.Equal(t, []string{"a", "b", "c"}, p1.MemberInvoiceIDs, "orden por fecha de creación ascendente")
	assert.True(t, p1.NetTotal.Equal(p2.NetTotal))
	assert.True(t, p1.GrandTotal.Equal(p2.GrandTotal))
}

func TestAggregate_DesempatePorID(t *testing.T) {
	march := consolidation.Period{Year: 2025, Month: time.March}
	x := itemized("x", 5, "10.00")
	w := itemized("w", 5, "20.00")
	w.CreatedAt = x.CreatedAt // misma marca de tiempo

	p := consolidation.Aggregate(march, []*entity.Invoice{x, w})
	assert.Equal(t, []string{"w", "x"}, p.MemberInvoiceIDs)
}

// Línea sin cantidad (fee/descuento): se toma su total almacenado en vez de
// precio × cantidad. Las líneas de subtotal se excluyen del neto.
func TestAggregate_LineasSinCantidadYSubtotales(t *testing.T) {
	march := consolidation.Period{Year: 2025, Month: time.March}
	created := time.Date(2025, 3, 8, 9, 0, 0, 0, consolidation.BusinessTimeZone)
	inv := &entity.Invoice{
		ID:         "mix",
		IssueDate:  created,
		NetTotal:   dec("999.99"), // la cabecera NO se usa cuando hay líneas
		GrandTotal: dec("45.00"),
		Status:     entity.InvoiceStatusIssued,
		CreatedAt:  created,
		Lines: []*entity.InvoiceLine{
			{ID: "l1", Quantity: dec("2"), UnitPrice: dec("25.00"), Total: dec("50.00")},
			{ID: "l2", Description: "Discount", Quantity: decimal.Zero, Total: dec("-5.00")},
			{ID: "l3", Description: "Subtotal", IsSubtotal: true, Total: dec("45.00")},
		},
	}

	p := consolidation.Aggregate(march, []*entity.Invoice{inv})
	assert.Equal(t, "45.00", p.NetTotal.StringFixed(2))
}

// Sin líneas: cae al neto almacenado en la cabecera.
func TestAggregate_SinLineasUsaCabecera(t *testing.T) {
	march := consolidation.Period{Year: 2025, Month: time.March}
	created := time.Date(2025, 3, 3, 9, 0, 0, 0, consolidation.BusinessTimeZone)
	inv := &entity.Invoice{
		ID: "plain", IssueDate: created, CreatedAt: created,
		NetTotal: dec("80.00"), TaxTotal: dec("4.80"), GrandTotal: dec("84.80"),
		Status: entity.InvoiceStatusIssued,
	}
	p := consolidation.Aggregate(march, []*entity.Invoice{inv})
	assert.Equal(t, "80.00", p.NetTotal.StringFixed(2))
	assert.Equal(t, "4.80", p.TaxTotal.StringFixed(2))
}

// Preferencia del impuesto por línea: si CUALQUIER factura del conjunto trae
// impuesto en líneas, el agregado usa solo impuesto de líneas; el fallback a
// cabecera aplica únicamente cuando no existe impuesto de línea en todo el
// conjunto.
func TestAggregate_PreferenciaImpuestoDeLinea(t *testing.T) {
	march := consolidation.Period{Year: 2025, Month: time.March}

	withLineTax := itemized("lt", 4, "100.00")
	withLineTax.Lines[0].Tax = dec("6.00")
	withLineTax.TaxTotal = dec("999.00") // cabecera inconsistente a propósito

	onlyHeaderTax := itemized("ht", 6, "50.00")
	onlyHeaderTax.TaxTotal = dec("3.00") // sin impuesto en líneas

	p := consolidation.Aggregate(march, []*entity.Invoice{withLineTax, onlyHeaderTax})
	assert.Equal(t, "6.00", p.TaxTotal.StringFixed(2),
		"existiendo impuesto de línea en el conjunto, las cabeceras se ignoran")

	// Conjunto sin impuesto de línea: fallback a cabeceras
	p = consolidation.Aggregate(march, []*entity.Invoice{onlyHeaderTax})
	assert.Equal(t, "3.00", p.TaxTotal.StringFixed(2))
}

func TestAggregate_RedondeoYTotales(t *testing.T) {
	march := consolidation.Period{Year: 2025, Month: time.March}
	a := itemized("a", 2, "10.00")
	a.Rounding = dec("0.02")
	a.GrandTotal = dec("10.02")
	b := itemized("b", 9, "20.00")
	b.Rounding = dec("-0.01")
	b.GrandTotal = dec("19.99")

	p := consolidation.Aggregate(march, []*entity.Invoice{a, b})
	assert.Equal(t, "0.01", p.RoundingTotal.StringFixed(2))
	assert.Equal(t, "30.01", p.GrandTotal.StringFixed(2))
}

// Lista vacía: preview "no-op" con totales en cero; el bloqueo del envío
// ocurre aguas arriba.
func TestAggregate_VacioProduceCeros(t *testing.T) {
	march := consolidation.Period{Year: 2025, Month: time.March}
	p := consolidation.Aggregate(march, nil)

	assert.True(t, p.IsEmpty())
	assert.Equal(t, 0, p.MemberCount)
	assert.True(t, p.NetTotal.IsZero())
	assert.True(t, p.GrandTotal.IsZero())
	assert.Equal(t, "CON-202503", p.DocumentID, "el identificador se genera igual")
}
