package einvoice

import (
	"context"
	"fmt"

	"github.com/tu-usuario/facturacion-pro/internal/domain"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
	"github.com/tu-usuario/facturacion-pro/internal/infrastructure/myinvois"
)

// PDFUseCase genera la representación gráfica (PDF) de una consolidada.
// Solo se permite sobre documentos ya resueltos ante la autoridad (no
// Pending): la representación incluye el long-id de validación.
type PDFUseCase struct {
	invoiceRepo      repository.InvoiceRepository
	consolidatedRepo repository.ConsolidatedInvoiceRepository
	generator        ConsolidatedPDFGenerator
	supplier         myinvois.SupplierInfo
}

// NewPDFUseCase construye el caso de uso inyectando sus dependencias.
func NewPDFUseCase(
	invoiceRepo repository.InvoiceRepository,
	consolidatedRepo repository.ConsolidatedInvoiceRepository,
	generator ConsolidatedPDFGenerator,
	supplier myinvois.SupplierInfo,
) *PDFUseCase {
	return &PDFUseCase{
		invoiceRepo:      invoiceRepo,
		consolidatedRepo: consolidatedRepo,
		generator:        generator,
		supplier:         supplier,
	}
}

// DownloadConsolidatedPDF recupera la consolidada con sus facturas miembro
// y genera el PDF.
//
// Retorna:
//   - (pdfBytes, filename, nil)  si todo sale bien.
//   - domain.ErrNotFound         si el documento no existe.
//   - domain.ErrInvalidInput     si sigue Pending (aún sin veredicto).
func (uc *PDFUseCase) DownloadConsolidatedPDF(ctx context.Context, companyID, documentID string) (pdfBytes []byte, filename string, err error) {
	doc, err := uc.consolidatedRepo.GetByID(ctx, companyID, documentID)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obtener consolidada: %w", err)
	}
	if doc == nil {
		return nil, "", domain.ErrNotFound
	}
	if doc.Status == entity.ConsolidatedStatusPending {
		return nil, "", fmt.Errorf("%w: el documento sigue pendiente de validación", domain.ErrInvalidInput)
	}

	members, err := uc.loadMembers(ctx, doc)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obtener facturas miembro: %w", err)
	}

	pdfBytes, err = uc.generator.GenerateConsolidatedPDF(ctx, doc, uc.supplier, members)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: generación fallida: %w", err)
	}

	return pdfBytes, fmt.Sprintf("consolidada_%s.pdf", doc.ID), nil
}

// loadMembers carga las facturas del período y se queda con las miembro, en
// el orden registrado en el documento.
func (uc *PDFUseCase) loadMembers(ctx context.Context, doc *entity.ConsolidatedInvoice) ([]*entity.Invoice, error) {
	candidates, err := uc.invoiceRepo.ListByPeriod(ctx, doc.CompanyID, doc.Year, int(doc.Month))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*entity.Invoice, len(candidates))
	for _, inv := range candidates {
		byID[inv.ID] = inv
	}
	members := make([]*entity.Invoice, 0, len(doc.MemberInvoiceIDs))
	for _, id := range doc.MemberInvoiceIDs {
		if inv, ok := byID[id]; ok {
			members = append(members, inv)
		}
	}
	return members, nil
}
