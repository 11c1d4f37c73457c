package myinvois

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/tu-usuario/facturacion-pro/internal/domain/consolidation"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
)

// Namespaces oficiales UBL 2.1 (los mismos del esquema que exige el portal).
const (
	nsInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	nsCac     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	nsCbc     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	nsExt     = "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"

	currencyCode = "MYR"

	// BuyerTINGeneralPublic TIN genérico "General Public" que la autoridad
	// exige como comprador de toda factura consolidada.
	BuyerTINGeneralPublic = "EI00000000010"
	// classificationConsolidated código de clasificación 004 = consolidated
	// e-Invoice.
	classificationConsolidated = "004"
	invoiceTypeCode            = "01" // Invoice
)

// SupplierInfo datos del emisor que van en AccountingSupplierParty.
type SupplierInfo struct {
	TIN     string
	RegNo   string // número de registro de la sociedad (BRN)
	Name    string
	Address string
	City    string
	State   string
	Country string // ISO 3166-1 alpha-3, ej. "MYS"
}

// BuildContext todo lo necesario para construir el XML del documento
// consolidado: el resumen agregado más las facturas miembro en su orden
// definitivo (una línea UBL por factura miembro).
type BuildContext struct {
	Preview  *consolidation.Preview
	Members  []*entity.Invoice
	Supplier SupplierInfo
	IssuedAt time.Time
}

// DocumentBuilder construye el XML UBL 2.1 de la factura consolidada
// (sin firma; el Signer la inyecta después).
type DocumentBuilder struct{}

// NewDocumentBuilder crea el servicio.
func NewDocumentBuilder() *DocumentBuilder {
	return &DocumentBuilder{}
}

// Build genera el []byte del documento Invoice consolidado.
func (b *DocumentBuilder) Build(ctx *BuildContext) ([]byte, error) {
	if ctx == nil || ctx.Preview == nil {
		return nil, fmt.Errorf("myinvois: contexto de construcción vacío")
	}
	if ctx.Preview.IsEmpty() {
		return nil, fmt.Errorf("myinvois: documento consolidado sin facturas miembro")
	}
	if ctx.Supplier.TIN == "" {
		return nil, fmt.Errorf("myinvois: TIN del emisor no configurado")
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("Invoice")
	root.CreateAttr("xmlns", nsInvoice)
	root.CreateAttr("xmlns:cac", nsCac)
	root.CreateAttr("xmlns:cbc", nsCbc)
	root.CreateAttr("xmlns:ext", nsExt)

	// ext:UBLExtensions siempre como primer hijo: el firmador inyecta
	// ds:Signature dentro de un segundo UBLExtension.
	ublExt := root.CreateElement("ext:UBLExtensions")
	ublExt.CreateElement("ext:UBLExtension").
		CreateElement("ext:ExtensionContent")

	issued := ctx.IssuedAt.In(consolidation.BusinessTimeZone)
	cbc(root, "cbc:ID", ctx.Preview.DocumentID)
	cbc(root, "cbc:IssueDate", issued.Format("2006-01-02"))
	cbc(root, "cbc:IssueTime", issued.UTC().Format("15:04:05Z"))
	typeCode := cbc(root, "cbc:InvoiceTypeCode", invoiceTypeCode)
	typeCode.CreateAttr("listVersionID", "1.0")
	cbc(root, "cbc:DocumentCurrencyCode", currencyCode)

	// Período facturado = el mes consolidado completo
	period := root.CreateElement("cac:InvoicePeriod")
	first := time.Date(ctx.Preview.Period.Year, ctx.Preview.Period.Month, 1, 0, 0, 0, 0, consolidation.BusinessTimeZone)
	last := first.AddDate(0, 1, -1)
	cbc(period, "cbc:StartDate", first.Format("2006-01-02"))
	cbc(period, "cbc:EndDate", last.Format("2006-01-02"))
	cbc(period, "cbc:Description", "Monthly")

	b.writeSupplier(root, ctx.Supplier)
	b.writeGeneralPublicBuyer(root)
	b.writeTaxTotal(root, ctx.Preview)
	b.writeMonetaryTotal(root, ctx.Preview)

	for i, member := range ctx.Members {
		b.writeMemberLine(root, i+1, member)
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

func cbc(parent *etree.Element, tag, value string) *etree.Element {
	e := parent.CreateElement(tag)
	e.SetText(value)
	return e
}

func amountElement(parent *etree.Element, tag string, amount decimal.Decimal) {
	e := cbc(parent, tag, amount.Round(2).StringFixed(2))
	e.CreateAttr("currencyID", currencyCode)
}

func (b *DocumentBuilder) writeSupplier(root *etree.Element, s SupplierInfo) {
	party := root.CreateElement("cac:AccountingSupplierParty").CreateElement("cac:Party")

	tin := party.CreateElement("cac:PartyIdentification")
	id := cbc(tin, "cbc:ID", s.TIN)
	id.CreateAttr("schemeID", "TIN")
	if s.RegNo != "" {
		brn := party.CreateElement("cac:PartyIdentification")
		id := cbc(brn, "cbc:ID", s.RegNo)
		id.CreateAttr("schemeID", "BRN")
	}

	addr := party.CreateElement("cac:PostalAddress")
	cbc(addr, "cbc:CityName", s.City)
	cbc(addr, "cbc:CountrySubentityCode", s.State)
	if s.Address != "" {
		cbc(addr.CreateElement("cac:AddressLine"), "cbc:Line", s.Address)
	}
	country := s.Country
	if country == "" {
		country = "MYS"
	}
	code := cbc(addr.CreateElement("cac:Country"), "cbc:IdentificationCode", country)
	code.CreateAttr("listID", "ISO3166-1")

	legal := party.CreateElement("cac:PartyLegalEntity")
	cbc(legal, "cbc:RegistrationName", s.Name)
}

// writeGeneralPublicBuyer comprador fijo de las consolidadas: el público
// general, identificado con el TIN EI00000000010.
func (b *DocumentBuilder) writeGeneralPublicBuyer(root *etree.Element) {
	party := root.CreateElement("cac:AccountingCustomerParty").CreateElement("cac:Party")
	pid := party.CreateElement("cac:PartyIdentification")
	id := cbc(pid, "cbc:ID", BuyerTINGeneralPublic)
	id.CreateAttr("schemeID", "TIN")
	legal := party.CreateElement("cac:PartyLegalEntity")
	cbc(legal, "cbc:RegistrationName", "General Public")
}

func (b *DocumentBuilder) writeTaxTotal(root *etree.Element, p *consolidation.Preview) {
	taxTotal := root.CreateElement("cac:TaxTotal")
	amountElement(taxTotal, "cbc:TaxAmount", p.TaxTotal)

	sub := taxTotal.CreateElement("cac:TaxSubtotal")
	amountElement(sub, "cbc:TaxableAmount", p.NetTotal)
	amountElement(sub, "cbc:TaxAmount", p.TaxTotal)
	cat := sub.CreateElement("cac:TaxCategory")
	cbc(cat, "cbc:ID", "01")
	cbc(cat.CreateElement("cac:TaxScheme"), "cbc:ID", "OTH")
}

func (b *DocumentBuilder) writeMonetaryTotal(root *etree.Element, p *consolidation.Preview) {
	total := root.CreateElement("cac:LegalMonetaryTotal")
	amountElement(total, "cbc:TaxExclusiveAmount", p.NetTotal)
	amountElement(total, "cbc:TaxInclusiveAmount", p.NetTotal.Add(p.TaxTotal).Round(2))
	amountElement(total, "cbc:PayableRoundingAmount", p.RoundingTotal)
	amountElement(total, "cbc:PayableAmount", p.GrandTotal)
}

// writeMemberLine una línea UBL por factura miembro; la descripción lleva el
// número de la factura original y la clasificación 004 (consolidada).
func (b *DocumentBuilder) writeMemberLine(root *etree.Element, seq int, inv *entity.Invoice) {
	line := root.CreateElement("cac:InvoiceLine")
	cbc(line, "cbc:ID", fmt.Sprintf("%d", seq))
	qty := cbc(line, "cbc:InvoicedQuantity", "1")
	qty.CreateAttr("unitCode", "C62")
	amountElement(line, "cbc:LineExtensionAmount", inv.NetTotal)

	taxTotal := line.CreateElement("cac:TaxTotal")
	amountElement(taxTotal, "cbc:TaxAmount", inv.TaxTotal)

	item := line.CreateElement("cac:Item")
	cbc(item, "cbc:Description", fmt.Sprintf("Factura %s", inv.Number))
	class := item.CreateElement("cac:CommodityClassification")
	code := cbc(class, "cbc:ItemClassificationCode", classificationConsolidated)
	code.CreateAttr("listID", "CLASS")

	price := line.CreateElement("cac:Price")
	amountElement(price, "cbc:PriceAmount", inv.NetTotal)
}
