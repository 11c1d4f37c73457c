package einvoice

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tu-usuario/facturacion-pro/internal/application/dto"
	"github.com/tu-usuario/facturacion-pro/internal/domain"
	"github.com/tu-usuario/facturacion-pro/internal/domain/consolidation"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
	"github.com/tu-usuario/facturacion-pro/internal/infrastructure/myinvois"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

// ConsolidationUseCase orquesta el ciclo de vida completo de la factura
// consolidada contra MyInvois:
//
//	Elegibilidad → Agregación → XML UBL 2.1 → Firma → Envío REST → Update DB
//
// Todas las operaciones que mutan un documento se serializan con un lock por
// (empresa, documento); como el identificador es determinista por período,
// dos envíos concurrentes del mismo período compiten por el mismo lock y el
// perdedor ve la consolidada ya creada.
type ConsolidationUseCase struct {
	txRunner         ConsolidationTxRunner
	invoiceRepo      repository.InvoiceRepository
	consolidatedRepo repository.ConsolidatedInvoiceRepository
	builder          *myinvois.DocumentBuilder
	signer           myinvois.Signer
	submitter        myinvois.DocumentSubmitter // nil solo en dev
	cfg              MyInvoisConfig
	log              *logger.Logger
	locks            *keyedLocks

	certOnce sync.Once
	cert     tls.Certificate
	certErr  error

	// now inyectable para tests; en producción es time.Now.
	now func() time.Time
}

// NewConsolidationUseCase construye el caso de uso con sus dependencias.
// submitter puede ser nil: en ese caso solo funciona el modo dev.
func NewConsolidationUseCase(
	txRunner ConsolidationTxRunner,
	invoiceRepo repository.InvoiceRepository,
	consolidatedRepo repository.ConsolidatedInvoiceRepository,
	builder *myinvois.DocumentBuilder,
	signer myinvois.Signer,
	submitter myinvois.DocumentSubmitter,
	cfg MyInvoisConfig,
	log *logger.Logger,
) *ConsolidationUseCase {
	return &ConsolidationUseCase{
		txRunner:         txRunner,
		invoiceRepo:      invoiceRepo,
		consolidatedRepo: consolidatedRepo,
		builder:          builder,
		signer:           signer,
		submitter:        submitter,
		cfg:              cfg,
		log:              log,
		locks:            newKeyedLocks(),
		now:              time.Now,
	}
}

// ── Previsualización ───────────────────────────────────────────────────────────

// Preview calcula los totales del período sin efectos colaterales. Un
// período sin facturas elegibles devuelve totales en cero, no error.
func (uc *ConsolidationUseCase) Preview(ctx context.Context, companyID string, year, month int, invoiceIDs []string) (*dto.PreviewResponse, error) {
	period, err := consolidation.NewPeriod(year, month)
	if err != nil {
		return nil, err
	}

	selected, err := uc.resolveMembers(ctx, companyID, period, invoiceIDs)
	if err != nil {
		return nil, err
	}

	preview := consolidation.Aggregate(period, selected)
	return previewToDTO(preview, period), nil
}

// resolveMembers lista candidatas del período y aplica elegibilidad más la
// selección explícita (vacía = todas las elegibles).
func (uc *ConsolidationUseCase) resolveMembers(ctx context.Context, companyID string, period consolidation.Period, invoiceIDs []string) ([]*entity.Invoice, error) {
	candidates, err := uc.invoiceRepo.ListByPeriod(ctx, companyID, period.Year, int(period.Month))
	if err != nil {
		return nil, fmt.Errorf("listando facturas del período %s: %w", period, err)
	}
	eligible := consolidation.EligibleInvoices(candidates, period)
	return consolidation.FilterBySelection(eligible, invoiceIDs), nil
}

// ── Envío ──────────────────────────────────────────────────────────────────────

// Submit consolida el período y entrega el documento al portal. Es
// todo-o-nada: si la entrega falla o el portal rechaza el documento, no se
// persiste nada y las facturas quedan intactas en el pool elegible.
//
// Idempotencia: un período con consolidada VALID devuelve
// ErrAlreadyConsolidated; con consolidada PENDING devuelve ErrConflict (hay
// que resolverla primero vía sondeo). Tras CANCELLED o INVALID el reenvío
// reutiliza el mismo identificador de documento.
func (uc *ConsolidationUseCase) Submit(ctx context.Context, companyID string, req *dto.SubmitConsolidationRequest) (*dto.SubmitConsolidationResponse, error) {
	period, err := consolidation.NewPeriod(req.Year, req.Month)
	if err != nil {
		return nil, err
	}

	unlock := uc.locks.acquire(companyID + "/" + period.DocumentID())
	defer unlock()

	existing, err := uc.consolidatedRepo.GetByPeriod(ctx, companyID, period.Year, int(period.Month))
	if err != nil {
		return nil, fmt.Errorf("consultando consolidada del período %s: %w", period, err)
	}
	if existing != nil {
		switch existing.Status {
		case entity.ConsolidatedStatusValid:
			return nil, domain.ErrAlreadyConsolidated
		case entity.ConsolidatedStatusPending:
			return nil, fmt.Errorf("%w: la consolidada %s sigue pendiente de validación", domain.ErrConflict, existing.ID)
		}
		// Cancelled o Invalid: el reenvío pisa la fila (upsert).
	}

	members, err := uc.resolveMembers(ctx, companyID, period, req.InvoiceIDs)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, domain.ErrEmptySelection
	}

	preview := consolidation.Aggregate(period, members)

	now := uc.now()
	xmlDoc, err := uc.buildSignedDocument(preview, members, now)
	if err != nil {
		return nil, err
	}

	result, err := uc.deliver(ctx, preview.DocumentID, xmlDoc)
	if err != nil {
		return nil, fmt.Errorf("entregando %s al portal: %w", preview.DocumentID, err)
	}

	resp := &dto.SubmitConsolidationResponse{
		Success:  result.UUID != "",
		Rejected: rejectedToDTO(result.Rejected),
	}
	for _, a := range result.Accepted {
		resp.Accepted = append(resp.Accepted, a.ID)
	}

	if result.UUID == "" {
		// Rechazo inmediato del portal: desenlace terminal, sin persistencia.
		uc.log.Warn().
			Str("document_id", preview.DocumentID).
			Int("rejected", len(result.Rejected)).
			Msg("consolidada rechazada por el portal en el envío")
		resp.Message = "documento rechazado por la autoridad"
		return resp, nil
	}

	doc := &entity.ConsolidatedInvoice{
		ID:               preview.DocumentID,
		CompanyID:        companyID,
		Year:             period.Year,
		Month:            period.Month,
		MemberInvoiceIDs: preview.MemberInvoiceIDs,
		NetTotal:         preview.NetTotal,
		TaxTotal:         preview.TaxTotal,
		RoundingTotal:    preview.RoundingTotal,
		GrandTotal:       preview.GrandTotal,
		Status:           statusFromPortal(result.Status),
		SubmissionUID:    result.SubmissionUID,
		DocumentUUID:     result.UUID,
		LongID:           result.LongID,
		ValidatedAt:      result.ValidatedAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if len(result.Rejected) > 0 {
		if raw, mErr := json.Marshal(result.Rejected); mErr == nil {
			doc.RejectedDetail = string(raw)
		}
	}

	err = uc.txRunner.RunConsolidation(ctx, func(
		invRepo repository.InvoiceRepository,
		conRepo repository.ConsolidatedInvoiceRepository,
	) error {
		if err := conRepo.Create(ctx, doc); err != nil {
			return err
		}
		return invRepo.LinkToConsolidation(ctx, doc.CompanyID, preview.MemberInvoiceIDs, doc.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("persistiendo consolidada %s: %w", doc.ID, err)
	}

	uc.log.Info().
		Str("document_id", doc.ID).
		Str("status", doc.Status).
		Int("members", preview.MemberCount).
		Str("grand_total", preview.GrandTotal.StringFixed(2)).
		Msg("consolidada enviada")

	resp.Document = docToDTO(doc)
	return resp, nil
}

// buildSignedDocument construye el XML UBL y le inyecta la firma.
func (uc *ConsolidationUseCase) buildSignedDocument(preview *consolidation.Preview, members []*entity.Invoice, issuedAt time.Time) ([]byte, error) {
	xmlDoc, err := uc.builder.Build(&myinvois.BuildContext{
		Preview:  preview,
		Members:  members,
		Supplier: uc.cfg.Supplier,
		IssuedAt: issuedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("construyendo XML de %s: %w", preview.DocumentID, err)
	}

	// Sin certificado configurado el documento viaja sin firmar; el portal
	// real lo rechazaría, así que en sandbox/prod es un error de despliegue
	// que se ve en el primer envío.
	if uc.cfg.CertPath == "" {
		return xmlDoc, nil
	}

	cert, err := uc.certificate()
	if err != nil {
		return nil, fmt.Errorf("cargando certificado de firma: %w", err)
	}
	signed, err := uc.signer.Sign(xmlDoc, cert)
	if err != nil {
		return nil, fmt.Errorf("firmando %s: %w", preview.DocumentID, err)
	}
	return signed, nil
}

// certificate carga el certificado de firma una sola vez por proceso.
func (uc *ConsolidationUseCase) certificate() (tls.Certificate, error) {
	uc.certOnce.Do(func() {
		uc.cert, uc.certErr = myinvois.LoadCertificate(uc.cfg.CertPath, uc.cfg.CertKeyPath, uc.cfg.CertPassword)
	})
	return uc.cert, uc.certErr
}

// deliver entrega el documento al portal, o simula la aceptación en dev.
func (uc *ConsolidationUseCase) deliver(ctx context.Context, documentID string, xmlDoc []byte) (*myinvois.SubmitResult, error) {
	if uc.cfg.AppEnv == myinvois.AppEnvDev || uc.submitter == nil {
		now := uc.now()
		mockUUID := uuid.NewString()
		uc.log.Debug().Str("document_id", documentID).Msg("modo dev: envío simulado")
		return &myinvois.SubmitResult{
			Success:       true,
			SubmissionUID: "DEV-" + uuid.NewString(),
			Status:        myinvois.PortalStatusValid,
			UUID:          mockUUID,
			LongID:        "DEV" + mockUUID,
			ValidatedAt:   &now,
			Accepted:      []myinvois.AcceptedDocument{{ID: documentID, UUID: mockUUID}},
		}, nil
	}

	return uc.submitter.Submit(ctx, &myinvois.SubmitRequest{
		CodeNumber:  documentID,
		DocumentXML: xmlDoc,
	})
}

// ── Sondeo de estado ───────────────────────────────────────────────────────────

// RefreshStatus consulta al portal el estado de un documento Pending y
// persiste la transición si la hubo. Sobre documentos ya resueltos es un
// no-op (Updated=false), no un error. Un fallo del portal tampoco es error:
// el documento sigue Pending y el mensaje queda en la respuesta.
func (uc *ConsolidationUseCase) RefreshStatus(ctx context.Context, companyID, documentID string) (*dto.StatusRefreshResponse, error) {
	unlock := uc.locks.acquire(companyID + "/" + documentID)
	defer unlock()

	doc, err := uc.consolidatedRepo.GetByID(ctx, companyID, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	if !entity.CanPoll(doc.Status) {
		return &dto.StatusRefreshResponse{Updated: false, Status: doc.Status, LongID: doc.LongID}, nil
	}

	res, err := uc.queryStatus(ctx, doc)
	if err != nil {
		uc.log.Warn().Err(err).Str("document_id", documentID).Msg("fallo consultando estado en el portal")
		return &dto.StatusRefreshResponse{
			Updated: false,
			Status:  doc.Status,
			Message: fmt.Sprintf("portal no disponible: %v", err),
		}, nil
	}

	newStatus := statusFromPortal(res.Status)
	if !res.Updated || newStatus == doc.Status {
		return &dto.StatusRefreshResponse{Updated: false, Status: doc.Status}, nil
	}

	doc.Status = newStatus
	if res.LongID != "" {
		doc.LongID = res.LongID
	}
	if res.ValidatedAt != nil {
		doc.ValidatedAt = res.ValidatedAt
	}
	doc.UpdatedAt = uc.now()
	if err := uc.consolidatedRepo.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("actualizando estado de %s: %w", documentID, err)
	}

	uc.log.Info().
		Str("document_id", documentID).
		Str("status", newStatus).
		Msg("estado de consolidada actualizado")

	return &dto.StatusRefreshResponse{Updated: true, Status: newStatus, LongID: doc.LongID}, nil
}

func (uc *ConsolidationUseCase) queryStatus(ctx context.Context, doc *entity.ConsolidatedInvoice) (*myinvois.StatusResult, error) {
	if uc.cfg.AppEnv == myinvois.AppEnvDev || uc.submitter == nil {
		now := uc.now()
		return &myinvois.StatusResult{
			Status:      myinvois.PortalStatusValid,
			LongID:      "DEV" + doc.DocumentUUID,
			ValidatedAt: &now,
			Updated:     true,
		}, nil
	}
	return uc.submitter.GetStatus(ctx, doc.DocumentUUID)
}

// ── Cancelación ────────────────────────────────────────────────────────────────

// Cancel cancela una consolidada ante el portal y libera a sus facturas
// miembro, que vuelven al pool elegible. Solo se permite desde Valid o
// Invalid; un documento Pending debe resolverse primero. La fila nunca se
// borra: queda en CANCELLED con la razón registrada.
func (uc *ConsolidationUseCase) Cancel(ctx context.Context, companyID, documentID, reason string) (*dto.CancelResponse, error) {
	unlock := uc.locks.acquire(companyID + "/" + documentID)
	defer unlock()

	doc, err := uc.consolidatedRepo.GetByID(ctx, companyID, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	if !entity.CanCancel(doc.Status) {
		return nil, fmt.Errorf("%w: no se puede cancelar desde %s", domain.ErrInvalidTransition, doc.Status)
	}

	if reason == "" {
		reason = DefaultCancelReason
	}

	if uc.cfg.AppEnv != myinvois.AppEnvDev && uc.submitter != nil {
		res, err := uc.submitter.Cancel(ctx, doc.DocumentUUID, reason)
		if err != nil {
			return nil, fmt.Errorf("cancelando %s en el portal: %w", documentID, err)
		}
		if !res.Success {
			return &dto.CancelResponse{Success: false, Status: doc.Status, Message: res.Message}, nil
		}
	}

	doc.Status = entity.ConsolidatedStatusCancelled
	doc.CancelReason = reason
	doc.UpdatedAt = uc.now()

	err = uc.txRunner.RunConsolidation(ctx, func(
		invRepo repository.InvoiceRepository,
		conRepo repository.ConsolidatedInvoiceRepository,
	) error {
		if err := conRepo.Update(ctx, doc); err != nil {
			return err
		}
		return invRepo.ReleaseFromConsolidation(ctx, doc.CompanyID, doc.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("persistiendo cancelación de %s: %w", documentID, err)
	}

	uc.log.Info().
		Str("document_id", documentID).
		Str("reason", reason).
		Msg("consolidada cancelada")

	return &dto.CancelResponse{Success: true, Status: doc.Status}, nil
}

// ── Consultas ──────────────────────────────────────────────────────────────────

// Get devuelve una consolidada por su identificador.
func (uc *ConsolidationUseCase) Get(ctx context.Context, companyID, documentID string) (*dto.ConsolidatedInvoiceResponse, error) {
	doc, err := uc.consolidatedRepo.GetByID(ctx, companyID, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	return docToDTO(doc), nil
}

// History lista las consolidadas del año, más reciente primero.
func (uc *ConsolidationUseCase) History(ctx context.Context, companyID string, year int) ([]*dto.ConsolidatedInvoiceResponse, error) {
	docs, err := uc.consolidatedRepo.ListByYear(ctx, companyID, year)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.ConsolidatedInvoiceResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, docToDTO(d))
	}
	return out, nil
}

// ── Mapeos ─────────────────────────────────────────────────────────────────────

// statusFromPortal traduce el estado del portal al estado interno.
func statusFromPortal(portalStatus string) string {
	switch portalStatus {
	case myinvois.PortalStatusValid:
		return entity.ConsolidatedStatusValid
	case myinvois.PortalStatusInvalid:
		return entity.ConsolidatedStatusInvalid
	case myinvois.PortalStatusCancelled:
		return entity.ConsolidatedStatusCancelled
	default:
		return entity.ConsolidatedStatusPending
	}
}

func previewToDTO(p *consolidation.Preview, period consolidation.Period) *dto.PreviewResponse {
	return &dto.PreviewResponse{
		DocumentID:       p.DocumentID,
		Year:             period.Year,
		Month:            int(period.Month),
		NetTotal:         p.NetTotal,
		TaxTotal:         p.TaxTotal,
		RoundingTotal:    p.RoundingTotal,
		GrandTotal:       p.GrandTotal,
		MemberCount:      p.MemberCount,
		MemberInvoiceIDs: p.MemberInvoiceIDs,
	}
}

func docToDTO(d *entity.ConsolidatedInvoice) *dto.ConsolidatedInvoiceResponse {
	return &dto.ConsolidatedInvoiceResponse{
		ID:               d.ID,
		CompanyID:        d.CompanyID,
		Year:             d.Year,
		Month:            int(d.Month),
		Status:           d.Status,
		NetTotal:         d.NetTotal,
		TaxTotal:         d.TaxTotal,
		RoundingTotal:    d.RoundingTotal,
		GrandTotal:       d.GrandTotal,
		MemberCount:      len(d.MemberInvoiceIDs),
		MemberInvoiceIDs: d.MemberInvoiceIDs,
		SubmissionUID:    d.SubmissionUID,
		DocumentUUID:     d.DocumentUUID,
		LongID:           d.LongID,
		ValidatedAt:      d.ValidatedAt,
		CancelReason:     d.CancelReason,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func rejectedToDTO(rejected []myinvois.RejectedDocument) []dto.RejectedDocumentDTO {
	if len(rejected) == 0 {
		return nil
	}
	out := make([]dto.RejectedDocumentDTO, 0, len(rejected))
	for _, r := range rejected {
		out = append(out, dto.RejectedDocumentDTO{
			ID:      r.ID,
			Code:    r.Error.Code,
			Message: r.Error.Message,
			Details: r.Error.Details,
		})
	}
	return out
}
