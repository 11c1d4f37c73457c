package consolidation_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/tu-usuario/facturacion-pro/internal/domain/consolidation"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
)

func invoiceInMarch(id string, day int) *entity.Invoice {
	issue := time.Date(2025, 3, day, 10, 0, 0, 0, consolidation.BusinessTimeZone)
	return &entity.Invoice{
		ID:         id,
		CompanyID:  "co-1",
		Number:     "INV-" + id,
		IssueDate:  issue,
		NetTotal:   decimal.RequireFromString("100.00"),
		GrandTotal: decimal.RequireFromString("100.00"),
		Status:     entity.InvoiceStatusIssued,
		CreatedAt:  issue,
	}
}

func TestEligibleInvoices_FiltraPorPeriodo(t *testing.T) {
	march := consolidation.Period{Year: 2025, Month: time.March}

	outOfPeriod := invoiceInMarch("f", 15)
	outOfPeriod.IssueDate = time.Date(2025, 4, 2, 10, 0, 0, 0, consolidation.BusinessTimeZone)

	got := consolidation.EligibleInvoices([]*entity.Invoice{
		invoiceInMarch("a", 1),
		outOfPeriod,
		invoiceInMarch("b", 28),
	}, march)

	assert.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestEligibleInvoices_ExcluyeCanceladas(t *testing.T) {
	march := consolidation.Period{Year: 2025, Month: time.March}
	cancelled := invoiceInMarch("c", 10)
	cancelled.Status = entity.InvoiceStatusCancelled

	got := consolidation.EligibleInvoices([]*entity.Invoice{cancelled, invoiceInMarch("d", 11)}, march)
	assert.Len(t, got, 1)
	assert.Equal(t, "d", got[0].ID)
}

// La regla central de exclusión: miembro de una consolidada VALID queda
// fuera; si esa consolidada se cancela (o resulta inválida), la factura
// vuelve a ser elegible — soporta el reenvío tras una consolidación fallida.
func TestEligibleInvoices_ExclusionPorConsolidadaValida(t *testing.T) {
	march := consolidation.Period{Year: 2025, Month: time.March}

	member := invoiceInMarch("m", 5)
	member.ConsolidatedInvoiceID = "CON-202503"
	member.ConsolidatedStatus = entity.ConsolidatedStatusValid

	got := consolidation.EligibleInvoices([]*entity.Invoice{member}, march)
	assert.Empty(t, got, "miembro de consolidada VALID no es elegible")

	member.ConsolidatedStatus = entity.ConsolidatedStatusCancelled
	got = consolidation.EligibleInvoices([]*entity.Invoice{member}, march)
	assert.Len(t, got, 1, "tras cancelar la consolidada vuelve al pool")

	member.ConsolidatedStatus = entity.ConsolidatedStatusInvalid
	got = consolidation.EligibleInvoices([]*entity.Invoice{member}, march)
	assert.Len(t, got, 1, "bajo consolidada INVALID también es elegible")
}

func TestEligibleInvoices_ConjuntoVacio(t *testing.T) {
	march := consolidation.Period{Year: 2025, Month: time.March}
	assert.Empty(t, consolidation.EligibleInvoices(nil, march))
}

func TestFilterBySelection(t *testing.T) {
	eligible := []*entity.Invoice{invoiceInMarch("a", 1), invoiceInMarch("b", 2), invoiceInMarch("c", 3)}

	got := consolidation.FilterBySelection(eligible, []string{"c", "a", "zz"})
	assert.Len(t, got, 2, "IDs desconocidos se ignoran")
	assert.Equal(t, "a", got[0].ID, "se conserva el orden de las elegibles, no el de la selección")
	assert.Equal(t, "c", got[1].ID)

	got = consolidation.FilterBySelection(eligible, nil)
	assert.Len(t, got, 3, "selección vacía = todas las elegibles")
}
