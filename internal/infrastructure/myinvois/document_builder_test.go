package myinvois_test

import (
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/facturacion-pro/internal/domain/consolidation"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/infrastructure/myinvois"
)

func buildTestContext(t *testing.T) *myinvois.BuildContext {
	t.Helper()
	march := consolidation.Period{Year: 2025, Month: time.March}
	created := time.Date(2025, 3, 10, 9, 0, 0, 0, consolidation.BusinessTimeZone)
	members := []*entity.Invoice{{
		ID: "inv-1", Number: "F-001", IssueDate: created, CreatedAt: created,
		NetTotal:   decimal.RequireFromString("100.00"),
		TaxTotal:   decimal.RequireFromString("0.00"),
		GrandTotal: decimal.RequireFromString("100.00"),
		Status:     entity.InvoiceStatusIssued,
	}}
	return &myinvois.BuildContext{
		Preview:  consolidation.Aggregate(march, members),
		Members:  members,
		Supplier: myinvois.SupplierInfo{TIN: "C1234567890", Name: "Empresa Demo Sdn Bhd", City: "Kuala Lumpur", State: "14"},
		IssuedAt: time.Date(2025, 4, 3, 10, 0, 0, 0, consolidation.BusinessTimeZone),
	}
}

func TestBuild_DocumentoConsolidadoValido(t *testing.T) {
	xmlBytes, err := myinvois.NewDocumentBuilder().Build(buildTestContext(t))
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(xmlBytes))
	root := doc.Root()
	require.NotNil(t, root)
	assert.Equal(t, "Invoice", root.Tag)

	// cbc:ID = identificador determinista del período
	id := root.FindElement("//ID")
	require.NotNil(t, id)
	assert.Equal(t, "CON-202503", id.Text())

	// El comprador de una consolidada siempre es el público general
	customer := root.FindElement("//AccountingCustomerParty")
	require.NotNil(t, customer)
	buyer := customer.FindElement("./Party/PartyIdentification/ID")
	require.NotNil(t, buyer)
	assert.Equal(t, myinvois.BuyerTINGeneralPublic, buyer.Text())

	// Una línea por factura miembro
	lines := root.FindElements("//InvoiceLine")
	assert.Len(t, lines, 1)

	// UBLExtensions presente como primer hijo (lo exige el firmador)
	first := root.ChildElements()[0]
	assert.Equal(t, "UBLExtensions", first.Tag)
}

func TestBuild_RechazaPreviewVacio(t *testing.T) {
	march := consolidation.Period{Year: 2025, Month: time.March}
	ctx := &myinvois.BuildContext{
		Preview:  consolidation.Aggregate(march, nil),
		Supplier: myinvois.SupplierInfo{TIN: "C1"},
		IssuedAt: time.Now(),
	}
	_, err := myinvois.NewDocumentBuilder().Build(ctx)
	assert.Error(t, err, "un documento sin miembros no debe construirse")
}

func TestBuild_RechazaSinTIN(t *testing.T) {
	ctx := buildTestContext(t)
	ctx.Supplier.TIN = ""
	_, err := myinvois.NewDocumentBuilder().Build(ctx)
	assert.Error(t, err)
}
