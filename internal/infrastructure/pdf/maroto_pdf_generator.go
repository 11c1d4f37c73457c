// Package pdf implementa la representación gráfica de la factura consolidada
// MyInvois (e-Invoice consolidada, comprador "General Public").
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Razón Social + TIN  │  ID Documento + Período      │
//	│  ─────────────────────────────────────────────────────────  │
//	│  EMISOR: Dirección completa                                  │
//	│  COMPRADOR: General Public (EI00000000010)                   │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: # | N° Factura | Fecha | Neto | Impuesto | Total     │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Neto / Impuestos / Redondeo / TOTAL (MYR)          │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER MyInvois: UUID + long-id + QR de validación          │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tu-usuario/facturacion-pro/internal/application/einvoice"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/infrastructure/myinvois"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 90, Blue: 80}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
)

// myrPrinter formatea montos con separador de miles según locale ms-MY.
var myrPrinter = message.NewPrinter(language.Malay)

// ── Generator ─────────────────────────────────────────────────────────────────

var _ einvoice.ConsolidatedPDFGenerator = (*MarotoPDFGenerator)(nil)

// MarotoPDFGenerator implementa einvoice.ConsolidatedPDFGenerator usando Maroto v2.
type MarotoPDFGenerator struct{}

// NewMarotoPDFGenerator construye el generador.
func NewMarotoPDFGenerator() *MarotoPDFGenerator { return &MarotoPDFGenerator{} }

// GenerateConsolidatedPDF genera el PDF y devuelve sus bytes.
func (g *MarotoPDFGenerator) GenerateConsolidatedPDF(
	_ context.Context,
	doc *entity.ConsolidatedInvoice,
	supplier myinvois.SupplierInfo,
	members []*entity.Invoice,
) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Factura Consolidada MyInvois", true).
		WithAuthor(supplier.Name, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(doc, supplier))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(emisorRow(supplier))
	m.AddRows(compradorRow())
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	for _, r := range tableMemberRows(members) {
		m.AddRows(r)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(doc))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	for _, r := range validationFooterRows(doc) {
		m.AddRows(r)
	}

	pdfDoc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return pdfDoc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: Razón social + TIN (izq) y ID de documento + período (der).
func headerRow(doc *entity.ConsolidatedInvoice, supplier myinvois.SupplierInfo) core.Row {
	periodo := fmt.Sprintf("Período: %02d/%04d", int(doc.Month), doc.Year)

	return row.New(18).Add(
		col.New(7).Add(
			text.New(supplier.Name, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("TIN: "+supplier.TIN+"   |   Reg: "+supplier.RegNo, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("FACTURA CONSOLIDADA (e-INVOICE)", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(doc.ID, props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New(periodo, props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

// emisorRow: datos del emisor.
func emisorRow(supplier myinvois.SupplierInfo) core.Row {
	return row.New(12).Add(
		col.New(12).Add(
			text.New("DATOS DEL EMISOR", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("%s   |   %s, %s   |   %s",
				nonEmpty(supplier.Address, "—"),
				nonEmpty(supplier.City, "—"),
				nonEmpty(supplier.State, "—"),
				nonEmpty(supplier.Country, "MYS"),
			), props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

// compradorRow: el comprador de una consolidada siempre es el público general.
func compradorRow() core.Row {
	return row.New(14).Add(
		col.New(12).Add(
			text.New("COMPRADOR", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New("General Public", props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New("TIN: "+myinvois.BuyerTINGeneralPublic, props.Text{
				Size: 8, Top: 12, Color: colorGray,
			}),
		),
	)
}

// tableHeaderRow: cabecera de la tabla de facturas miembro.
func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("#", 1, align.Center),
		h("N° Factura", 3, align.Left),
		h("Fecha", 2, align.Center),
		h("Neto", 2, align.Right),
		h("Impuesto", 2, align.Right),
		h("Total", 2, align.Right),
	)
}

// tableMemberRows: una fila por factura miembro.
func tableMemberRows(members []*entity.Invoice) []core.Row {
	result := make([]core.Row, 0, len(members))
	for i, inv := range members {
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(
				fmt.Sprintf("%d", i+1),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(3).Add(text.New(
				inv.Number,
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1},
			)),
			col.New(2).Add(text.New(
				inv.IssueDate.Format("02/01/2006"),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(2).Add(text.New(
				formatMYR(inv.NetTotal),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(2).Add(text.New(
				formatMYR(inv.TaxTotal),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(2).Add(text.New(
				formatMYR(inv.GrandTotal),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
		))
	}
	return result
}

// totalsRow: bloque de totales alineado a la derecha.
func totalsRow(doc *entity.ConsolidatedInvoice) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2,
		})
	}
	value := func(s string) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1})
	}
	grandLabel := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 2,
		})
	}
	grandValue := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 1,
		})
	}

	return row.New(32).Add(
		col.New(3),
		col.New(3).Add(
			label("Subtotal neto:"),
			label("Impuestos:"),
			label("Redondeo:"),
			grandLabel("TOTAL MYR:"),
		),
		col.New(3).Add(
			value(formatMYR(doc.NetTotal)),
			value(formatMYR(doc.TaxTotal)),
			value(formatMYR(doc.RoundingTotal)),
			grandValue(formatMYR(doc.GrandTotal)),
		),
		col.New(3),
	)
}

// validationFooterRows: UUID + long-id + QR del link público de validación.
func validationFooterRows(doc *entity.ConsolidatedInvoice) []core.Row {
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("VALIDACIÓN MyInvois (LHDN)", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
		)),
		row.New(5).Add(col.New(12).Add(
			text.New("UUID: "+nonEmpty(doc.DocumentUUID, "—")+"   |   Estado: "+doc.Status, props.Text{
				Size: 7, Top: 1, Color: colorGray,
			}),
		)),
	}

	if doc.LongID != "" && doc.DocumentUUID != "" {
		validationURL := fmt.Sprintf("https://myinvois.hasil.gov.my/%s/share/%s", doc.DocumentUUID, doc.LongID)
		rows = append(rows, row.New(50).Add(
			col.New(4).Add(code.NewQr(validationURL, props.Rect{
				Percent: 95,
				Center:  true,
			})),
			col.New(8).Add(
				text.New("Escanee el código QR para validar\neste documento en el portal MyInvois.", props.Text{
					Size: 8, Top: 4, Left: 3, Color: colorGray,
				}),
				text.New("FACTURA CONSOLIDADA VALIDADA", props.Text{
					Style: fontstyle.Bold, Size: 10, Top: 22,
					Left: 3, Color: colorPrimary,
				}),
			),
		))
	} else if doc.Status == entity.ConsolidatedStatusCancelled {
		rows = append(rows, row.New(10).Add(col.New(12).Add(
			text.New("DOCUMENTO CANCELADO: "+nonEmpty(doc.CancelReason, "—"), props.Text{
				Style: fontstyle.Bold, Size: 9, Align: align.Center,
				Color: colorGray, Top: 2,
			}),
		)))
	}

	rows = append(rows, row.New(8).Add(col.New(12).Add(
		text.New(
			"Factura consolidada emitida al público general conforme a las guías "+
				"de e-Invoice de LHDN Malaysia. Conserve este documento como soporte fiscal.",
			props.Text{Size: 6.5, Color: colorGray, Top: 2},
		),
	)))

	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// formatMYR formatea un monto en sen a "RM 1,234.56" con el locale ms-MY.
func formatMYR(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return myrPrinter.Sprintf("RM %.2f", f)
}
