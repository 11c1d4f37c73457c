package einvoice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tu-usuario/facturacion-pro/internal/application/dto"
	"github.com/tu-usuario/facturacion-pro/internal/domain"
	"github.com/tu-usuario/facturacion-pro/internal/domain/consolidation"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

// AutoConsolidationUseCase scheduler de consolidación automática. Corre los
// días 3 a 7 del mes (UTC+8) y consolida el mes anterior de cada empresa con
// el toggle activo: a lo más un intento por día de negocio, máximo cinco por
// ventana, y el registro de intento del período se muta en vez de duplicarse.
type AutoConsolidationUseCase struct {
	lifecycle        *ConsolidationUseCase
	attemptRepo      repository.AutoConsolidationRepository
	consolidatedRepo repository.ConsolidatedInvoiceRepository
	settingsRepo     repository.SettingsRepository
	companies        CompanyProvider
	log              *logger.Logger

	now func() time.Time
}

// NewAutoConsolidationUseCase construye el scheduler.
func NewAutoConsolidationUseCase(
	lifecycle *ConsolidationUseCase,
	attemptRepo repository.AutoConsolidationRepository,
	consolidatedRepo repository.ConsolidatedInvoiceRepository,
	settingsRepo repository.SettingsRepository,
	companies CompanyProvider,
	log *logger.Logger,
) *AutoConsolidationUseCase {
	return &AutoConsolidationUseCase{
		lifecycle:        lifecycle,
		attemptRepo:      attemptRepo,
		consolidatedRepo: consolidatedRepo,
		settingsRepo:     settingsRepo,
		companies:        companies,
		log:              log,
		now:              time.Now,
	}
}

// RunOnce ejecuta un ciclo del scheduler sobre todas las empresas. Los
// fallos por empresa se registran y no interrumpen a las demás.
func (uc *AutoConsolidationUseCase) RunOnce(ctx context.Context) error {
	companyIDs, err := uc.companies.ListAutoConsolidationCompanies(ctx)
	if err != nil {
		return err
	}
	for _, companyID := range companyIDs {
		if err := uc.RunForCompany(ctx, companyID); err != nil {
			uc.log.Error().Err(err).Str("company_id", companyID).Msg("ciclo de consolidación automática falló")
		}
	}
	return nil
}

// RunForCompany ejecuta el ciclo para una empresa: expira intentos de
// ventanas ya cerradas y, si la ventana está abierta, procesa el período
// objetivo.
func (uc *AutoConsolidationUseCase) RunForCompany(ctx context.Context, companyID string) error {
	enabled, err := uc.settingsRepo.GetAutoConsolidationEnabled(ctx, companyID)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}

	now := uc.now()
	if err := uc.expireStale(ctx, companyID, now); err != nil {
		return err
	}

	w := consolidation.ComputeWindow(now)
	if !w.InWindow {
		return nil
	}
	return uc.processPeriod(ctx, companyID, w.Target, now)
}

// expireStale marca EXPIRED los intentos abiertos cuyo período ya no tiene
// ventana (día 8 en adelante del mes siguiente al objetivo). Es la forma de
// "timeout" del sistema: no hay otro mecanismo de expiración.
func (uc *AutoConsolidationUseCase) expireStale(ctx context.Context, companyID string, now time.Time) error {
	open, err := uc.attemptRepo.ListOpen(ctx, companyID)
	if err != nil {
		return err
	}
	for _, attempt := range open {
		target := consolidation.Period{Year: attempt.Year, Month: attempt.Month}
		if !consolidation.WindowClosedFor(target, now) {
			continue
		}
		attempt.Status = entity.AttemptStatusExpired
		attempt.LastError = "ventana de consolidación cerrada sin éxito"
		attempt.NextAttemptAt = nil
		attempt.UpdatedAt = now
		if err := uc.attemptRepo.Upsert(ctx, attempt); err != nil {
			return err
		}
		uc.log.Warn().
			Str("company_id", companyID).
			Str("period", target.String()).
			Msg("intento de consolidación automática expirado")
	}
	return nil
}

// processPeriod ejecuta (o reintenta) el intento del período objetivo.
func (uc *AutoConsolidationUseCase) processPeriod(ctx context.Context, companyID string, target consolidation.Period, now time.Time) error {
	attempt, err := uc.attemptRepo.GetByPeriod(ctx, companyID, target.Year, int(target.Month))
	if err != nil {
		return err
	}
	if attempt == nil {
		attempt = &entity.AutoConsolidationAttempt{
			ID:        uuid.NewString(),
			CompanyID: companyID,
			Year:      target.Year,
			Month:     target.Month,
			Status:    entity.AttemptStatusPending,
			CreatedAt: now,
		}
	}
	if entity.AttemptIsTerminal(attempt.Status) {
		return nil
	}
	// A lo más una ejecución por día de negocio.
	if attempt.LastAttemptAt != nil && consolidation.SameBusinessDay(*attempt.LastAttemptAt, now) {
		return nil
	}

	// Idempotencia: si el período ya tiene consolidada válida, no hay nada
	// que hacer. Si la tiene PENDING (validación asíncrona de un envío
	// anterior), se consulta su estado en vez de reenviar.
	existing, err := uc.consolidatedRepo.GetByPeriod(ctx, companyID, target.Year, int(target.Month))
	if err != nil {
		return err
	}
	if existing != nil {
		switch existing.Status {
		case entity.ConsolidatedStatusValid:
			attempt.Status = entity.AttemptStatusSkipped
			attempt.ConsolidatedInvoiceID = existing.ID
			attempt.NextAttemptAt = nil
			attempt.UpdatedAt = now
			return uc.attemptRepo.Upsert(ctx, attempt)
		case entity.ConsolidatedStatusPending:
			return uc.resolvePending(ctx, attempt, existing, now)
		}
	}

	attempt.Status = entity.AttemptStatusProcessing
	attempt.Attempts++
	attempt.LastAttemptAt = &now
	attempt.UpdatedAt = now
	if err := uc.attemptRepo.Upsert(ctx, attempt); err != nil {
		return err
	}

	resp, err := uc.lifecycle.Submit(ctx, companyID, &dto.SubmitConsolidationRequest{
		Year:  target.Year,
		Month: int(target.Month),
	})

	switch {
	case errors.Is(err, domain.ErrEmptySelection):
		attempt.Status = entity.AttemptStatusSkipped
		attempt.LastError = "sin facturas elegibles en el período"
		attempt.NextAttemptAt = nil
	case errors.Is(err, domain.ErrAlreadyConsolidated):
		attempt.Status = entity.AttemptStatusSkipped
		attempt.LastError = ""
	case err != nil:
		uc.markFailed(attempt, err.Error(), now)
	case !resp.Success:
		detail := resp.Message
		if len(resp.Rejected) > 0 {
			detail = resp.Rejected[0].Code + ": " + resp.Rejected[0].Message
		}
		uc.markFailed(attempt, detail, now)
	case resp.Document.Status == entity.ConsolidatedStatusPending:
		// El portal aceptó pero la validación es asíncrona. COMPLETED exige
		// consolidada creada Y válida: el intento queda abierto y las
		// próximas corridas consultan el estado hasta que resuelva.
		attempt.Status = entity.AttemptStatusProcessing
		attempt.ConsolidatedInvoiceID = resp.Document.ID
		attempt.LastError = ""
		attempt.NextAttemptAt = nextRetryAt(now)
		uc.log.Info().
			Str("company_id", companyID).
			Str("document_id", resp.Document.ID).
			Msg("consolidada enviada, pendiente de validación del portal")
	default:
		attempt.Status = entity.AttemptStatusCompleted
		attempt.ConsolidatedInvoiceID = resp.Document.ID
		attempt.LastError = ""
		attempt.NextAttemptAt = nil
		uc.log.Info().
			Str("company_id", companyID).
			Str("document_id", resp.Document.ID).
			Int("attempts", attempt.Attempts).
			Msg("consolidación automática completada")
	}

	attempt.UpdatedAt = uc.now()
	return uc.attemptRepo.Upsert(ctx, attempt)
}

// resolvePending consulta el estado de una consolidada PENDING dejada por un
// envío anterior y resuelve el intento según lo que responda el portal. No
// cuenta como envío (Attempts no se incrementa), pero sí consume el cupo
// diario vía LastAttemptAt.
func (uc *AutoConsolidationUseCase) resolvePending(ctx context.Context, attempt *entity.AutoConsolidationAttempt, doc *entity.ConsolidatedInvoice, now time.Time) error {
	st, err := uc.lifecycle.RefreshStatus(ctx, doc.CompanyID, doc.ID)
	if err != nil {
		return err
	}

	attempt.LastAttemptAt = &now
	switch st.Status {
	case entity.ConsolidatedStatusValid:
		attempt.Status = entity.AttemptStatusCompleted
		attempt.ConsolidatedInvoiceID = doc.ID
		attempt.LastError = ""
		attempt.NextAttemptAt = nil
		uc.log.Info().
			Str("company_id", attempt.CompanyID).
			Str("document_id", doc.ID).
			Int("attempts", attempt.Attempts).
			Msg("consolidación automática completada tras validación diferida")
	case entity.ConsolidatedStatusInvalid:
		// Las miembro de una consolidada inválida vuelven a ser elegibles:
		// el reintento del próximo día de negocio reenvía.
		uc.markFailed(attempt, "el portal marcó la consolidada como inválida", now)
	default:
		// Sigue PENDING (o el portal no respondió): el intento queda abierto
		// y se vuelve a consultar el próximo día de negocio. Si la ventana
		// cierra antes de resolver, expireStale lo marca EXPIRED.
		attempt.Status = entity.AttemptStatusProcessing
		attempt.ConsolidatedInvoiceID = doc.ID
		attempt.NextAttemptAt = nextRetryAt(now)
		if st.Message != "" {
			attempt.LastError = st.Message
		}
	}

	attempt.UpdatedAt = uc.now()
	return uc.attemptRepo.Upsert(ctx, attempt)
}

// markFailed deja el intento FAILED y agenda el reintento para el próximo
// día de negocio si aún cae dentro de la ventana.
func (uc *AutoConsolidationUseCase) markFailed(attempt *entity.AutoConsolidationAttempt, detail string, now time.Time) {
	attempt.Status = entity.AttemptStatusFailed
	attempt.LastError = detail
	attempt.NextAttemptAt = nextRetryAt(now)

	uc.log.Warn().
		Str("company_id", attempt.CompanyID).
		Int("attempts", attempt.Attempts).
		Str("error", detail).
		Msg("intento de consolidación automática falló")
}

// nextRetryAt devuelve las 00:00 (zona de negocio) del día siguiente si aún
// cae dentro de la ventana, o nil si la ventana cierra antes.
func nextRetryAt(now time.Time) *time.Time {
	local := now.In(consolidation.BusinessTimeZone)
	next := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, consolidation.BusinessTimeZone)
	if next.Day() <= consolidation.WindowCloseDay && next.Month() == local.Month() {
		return &next
	}
	return nil
}

// ── Consulta y configuración ───────────────────────────────────────────────────

// Status devuelve la ventana vigente y el intento del período objetivo.
func (uc *AutoConsolidationUseCase) Status(ctx context.Context, companyID string) (*dto.AutoStatusResponse, error) {
	enabled, err := uc.settingsRepo.GetAutoConsolidationEnabled(ctx, companyID)
	if err != nil {
		return nil, err
	}

	w := consolidation.ComputeWindow(uc.now())
	resp := &dto.AutoStatusResponse{
		Enabled:     enabled,
		InWindow:    w.InWindow,
		TargetYear:  w.Target.Year,
		TargetMonth: int(w.Target.Month),
		NextOpenAt:  w.NextOpen,
	}

	attempt, err := uc.attemptRepo.GetByPeriod(ctx, companyID, w.Target.Year, int(w.Target.Month))
	if err != nil {
		return nil, err
	}
	if attempt != nil {
		resp.Attempt = &dto.AutoAttemptResponse{
			Year:                  attempt.Year,
			Month:                 int(attempt.Month),
			Status:                attempt.Status,
			Attempts:              attempt.Attempts,
			LastAttemptAt:         attempt.LastAttemptAt,
			NextAttemptAt:         attempt.NextAttemptAt,
			ConsolidatedInvoiceID: attempt.ConsolidatedInvoiceID,
			LastError:             attempt.LastError,
		}
	}
	return resp, nil
}

// GetSettings devuelve el toggle de la empresa.
func (uc *AutoConsolidationUseCase) GetSettings(ctx context.Context, companyID string) (*dto.AutoSettingsResponse, error) {
	enabled, err := uc.settingsRepo.GetAutoConsolidationEnabled(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return &dto.AutoSettingsResponse{Enabled: enabled}, nil
}

// UpdateSettings activa o desactiva la consolidación automática.
func (uc *AutoConsolidationUseCase) UpdateSettings(ctx context.Context, companyID string, req *dto.AutoSettingsRequest) (*dto.AutoSettingsResponse, error) {
	if err := uc.settingsRepo.SetAutoConsolidationEnabled(ctx, companyID, req.Enabled); err != nil {
		return nil, err
	}
	uc.log.Info().Str("company_id", companyID).Bool("enabled", req.Enabled).Msg("consolidación automática reconfigurada")
	return &dto.AutoSettingsResponse{Enabled: req.Enabled}, nil
}
