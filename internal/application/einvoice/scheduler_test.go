package einvoice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/facturacion-pro/internal/application/dto"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/infrastructure/myinvois"
)

func marchAttempt(status string, lastAt *time.Time) *entity.AutoConsolidationAttempt {
	return &entity.AutoConsolidationAttempt{
		ID: "at-1", CompanyID: testCompanyID, Year: 2025, Month: time.March,
		Status: status, Attempts: 1, LastAttemptAt: lastAt,
	}
}

func TestScheduler_ConsolidaElMesAnterior(t *testing.T) {
	inv := newFakeInvoiceRepo(marchInvoice("a", 10, "500.00", "30.00"))
	con := newFakeConsolidatedRepo()
	lc, _ := newTestLifecycle(inv, con, nil, myinvois.AppEnvDev)
	attempts := newFakeAttemptRepo()
	sched, _ := newTestScheduler(lc, attempts, con, true)

	require.NoError(t, sched.RunOnce(context.Background()))

	attempt, err := attempts.GetByPeriod(context.Background(), testCompanyID, 2025, 3)
	require.NoError(t, err)
	require.NotNil(t, attempt, "día 5 de abril: la ventana apunta a marzo")
	assert.Equal(t, entity.AttemptStatusCompleted, attempt.Status)
	assert.Equal(t, "CON-202503", attempt.ConsolidatedInvoiceID)
	assert.Equal(t, 1, attempt.Attempts)
	require.NotNil(t, attempt.LastAttemptAt)

	assert.Contains(t, con.docs, "CON-202503")
}

func TestScheduler_ToggleDesactivadoNoHaceNada(t *testing.T) {
	inv := newFakeInvoiceRepo(marchInvoice("a", 10, "500.00", "0.00"))
	con := newFakeConsolidatedRepo()
	lc, _ := newTestLifecycle(inv, con, nil, myinvois.AppEnvDev)
	attempts := newFakeAttemptRepo()
	sched, _ := newTestScheduler(lc, attempts, con, false)

	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Empty(t, attempts.attempts)
	assert.Empty(t, con.docs)
}

func TestScheduler_FueraDeVentanaNoHaceNada(t *testing.T) {
	inv := newFakeInvoiceRepo(marchInvoice("a", 10, "500.00", "0.00"))
	con := newFakeConsolidatedRepo()
	lc, _ := newTestLifecycle(inv, con, nil, myinvois.AppEnvDev)
	attempts := newFakeAttemptRepo()
	sched, _ := newTestScheduler(lc, attempts, con, true)
	// Día 2: la ventana aún no abre.
	sched.now = func() time.Time {
		return time.Date(2025, time.April, 2, 10, 0, 0, 0, time.FixedZone("UTC+8", 8*3600))
	}

	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Empty(t, attempts.attempts)
}

func TestScheduler_SinElegiblesQuedaSkipped(t *testing.T) {
	con := newFakeConsolidatedRepo()
	lc, _ := newTestLifecycle(newFakeInvoiceRepo(), con, nil, myinvois.AppEnvDev)
	attempts := newFakeAttemptRepo()
	sched, _ := newTestScheduler(lc, attempts, con, true)

	require.NoError(t, sched.RunOnce(context.Background()))

	attempt := attempts.attempts[attemptKey(testCompanyID, 2025, 3)]
	require.NotNil(t, attempt)
	assert.Equal(t, entity.AttemptStatusSkipped, attempt.Status)
	assert.Contains(t, attempt.LastError, "sin facturas elegibles")
}

func TestScheduler_ConsolidadaValidaPreexistenteQuedaSkipped(t *testing.T) {
	existing := &entity.ConsolidatedInvoice{
		ID: "CON-202503", CompanyID: testCompanyID, Year: 2025, Month: time.March,
		Status: entity.ConsolidatedStatusValid,
	}
	inv := newFakeInvoiceRepo(marchInvoice("a", 10, "500.00", "0.00"))
	con := newFakeConsolidatedRepo(existing)
	lc, _ := newTestLifecycle(inv, con, nil, myinvois.AppEnvDev)
	attempts := newFakeAttemptRepo()
	sched, _ := newTestScheduler(lc, attempts, con, true)

	require.NoError(t, sched.RunOnce(context.Background()))

	attempt := attempts.attempts[attemptKey(testCompanyID, 2025, 3)]
	require.NotNil(t, attempt)
	assert.Equal(t, entity.AttemptStatusSkipped, attempt.Status)
	assert.Equal(t, "CON-202503", attempt.ConsolidatedInvoiceID)
	assert.Zero(t, attempt.Attempts, "no se ejecutó ningún envío")
}

func TestScheduler_UnIntentoPorDiaDeNegocio(t *testing.T) {
	lastAt := testNow.Add(-2 * time.Hour) // mismo día de negocio
	inv := newFakeInvoiceRepo(marchInvoice("a", 10, "500.00", "0.00"))
	con := newFakeConsolidatedRepo()
	lc, _ := newTestLifecycle(inv, con, nil, myinvois.AppEnvDev)
	attempts := newFakeAttemptRepo(marchAttempt(entity.AttemptStatusFailed, &lastAt))
	sched, _ := newTestScheduler(lc, attempts, con, true)

	require.NoError(t, sched.RunOnce(context.Background()))

	attempt := attempts.attempts[attemptKey(testCompanyID, 2025, 3)]
	assert.Equal(t, entity.AttemptStatusFailed, attempt.Status, "sin reintento hasta mañana")
	assert.Equal(t, 1, attempt.Attempts)
	assert.Empty(t, con.docs)
}

func TestScheduler_ReintentaAlDiaSiguiente(t *testing.T) {
	lastAt := testNow.AddDate(0, 0, -1) // ayer
	inv := newFakeInvoiceRepo(marchInvoice("a", 10, "500.00", "0.00"))
	con := newFakeConsolidatedRepo()
	lc, _ := newTestLifecycle(inv, con, nil, myinvois.AppEnvDev)
	attempts := newFakeAttemptRepo(marchAttempt(entity.AttemptStatusFailed, &lastAt))
	sched, _ := newTestScheduler(lc, attempts, con, true)

	require.NoError(t, sched.RunOnce(context.Background()))

	attempt := attempts.attempts[attemptKey(testCompanyID, 2025, 3)]
	assert.Equal(t, entity.AttemptStatusCompleted, attempt.Status)
	assert.Equal(t, 2, attempt.Attempts)
}

func TestScheduler_FalloAgendaReintentoDentroDeVentana(t *testing.T) {
	sub := &fakeSubmitter{submitErr: context.DeadlineExceeded}
	inv := newFakeInvoiceRepo(marchInvoice("a", 10, "500.00", "0.00"))
	con := newFakeConsolidatedRepo()
	lc, _ := newTestLifecycle(inv, con, sub, myinvois.AppEnvSandbox)
	attempts := newFakeAttemptRepo()
	sched, _ := newTestScheduler(lc, attempts, con, true)

	require.NoError(t, sched.RunOnce(context.Background()))

	attempt := attempts.attempts[attemptKey(testCompanyID, 2025, 3)]
	require.NotNil(t, attempt)
	assert.Equal(t, entity.AttemptStatusFailed, attempt.Status)
	assert.NotEmpty(t, attempt.LastError)
	require.NotNil(t, attempt.NextAttemptAt, "día 5: queda ventana para reintentar")
	assert.Equal(t, 6, attempt.NextAttemptAt.Day())
}

func TestScheduler_FalloElUltimoDiaNoAgendaReintento(t *testing.T) {
	sub := &fakeSubmitter{submitErr: context.DeadlineExceeded}
	inv := newFakeInvoiceRepo(marchInvoice("a", 10, "500.00", "0.00"))
	con := newFakeConsolidatedRepo()
	lc, _ := newTestLifecycle(inv, con, sub, myinvois.AppEnvSandbox)
	attempts := newFakeAttemptRepo()
	sched, _ := newTestScheduler(lc, attempts, con, true)
	day7 := time.Date(2025, time.April, 7, 9, 0, 0, 0, time.FixedZone("UTC+8", 8*3600))
	sched.now = func() time.Time { return day7 }

	require.NoError(t, sched.RunOnce(context.Background()))

	attempt := attempts.attempts[attemptKey(testCompanyID, 2025, 3)]
	require.NotNil(t, attempt)
	assert.Equal(t, entity.AttemptStatusFailed, attempt.Status)
	assert.Nil(t, attempt.NextAttemptAt, "el día 8 la ventana ya está cerrada")
}

func TestScheduler_ValidacionAsincronaDejaIntentoAbierto(t *testing.T) {
	// El portal acepta pero responde Submitted: el documento queda PENDING
	// y el intento no puede darse por completado todavía.
	sub := &fakeSubmitter{submitResult: &myinvois.SubmitResult{
		Success:       true,
		SubmissionUID: "sub-1",
		Status:        myinvois.PortalStatusSubmitted,
		UUID:          "uuid-async",
	}}
	inv := newFakeInvoiceRepo(marchInvoice("a", 10, "500.00", "0.00"))
	con := newFakeConsolidatedRepo()
	lc, _ := newTestLifecycle(inv, con, sub, myinvois.AppEnvSandbox)
	attempts := newFakeAttemptRepo()
	sched, _ := newTestScheduler(lc, attempts, con, true)

	require.NoError(t, sched.RunOnce(context.Background()))

	require.Contains(t, con.docs, "CON-202503")
	assert.Equal(t, entity.ConsolidatedStatusPending, con.docs["CON-202503"].Status)

	attempt := attempts.attempts[attemptKey(testCompanyID, 2025, 3)]
	require.NotNil(t, attempt)
	assert.Equal(t, entity.AttemptStatusProcessing, attempt.Status,
		"COMPLETED exige consolidada creada y válida")
	assert.Equal(t, "CON-202503", attempt.ConsolidatedInvoiceID)
	assert.Equal(t, 1, attempt.Attempts)
	require.NotNil(t, attempt.NextAttemptAt, "la próxima corrida consulta el estado")
	assert.Equal(t, 6, attempt.NextAttemptAt.Day())
}

func pendingMarchSetup(sub *fakeSubmitter) (*AutoConsolidationUseCase, *fakeAttemptRepo, *fakeConsolidatedRepo) {
	lastAt := testNow.AddDate(0, 0, -1) // envío de ayer
	pending := marchAttempt(entity.AttemptStatusProcessing, &lastAt)
	pending.ConsolidatedInvoiceID = "CON-202503"
	doc := &entity.ConsolidatedInvoice{
		ID: "CON-202503", CompanyID: testCompanyID, Year: 2025, Month: time.March,
		Status: entity.ConsolidatedStatusPending, DocumentUUID: "uuid-async",
	}
	con := newFakeConsolidatedRepo(doc)
	lc, _ := newTestLifecycle(newFakeInvoiceRepo(), con, sub, myinvois.AppEnvSandbox)
	attempts := newFakeAttemptRepo(pending)
	sched, _ := newTestScheduler(lc, attempts, con, true)
	return sched, attempts, con
}

func TestScheduler_PendienteResueltoValidoCompleta(t *testing.T) {
	sub := &fakeSubmitter{statusResult: &myinvois.StatusResult{
		Status: myinvois.PortalStatusValid, LongID: "LID9", Updated: true,
	}}
	sched, attempts, con := pendingMarchSetup(sub)

	require.NoError(t, sched.RunOnce(context.Background()))

	attempt := attempts.attempts[attemptKey(testCompanyID, 2025, 3)]
	assert.Equal(t, entity.AttemptStatusCompleted, attempt.Status)
	assert.Equal(t, 1, attempt.Attempts, "consultar estado no consume envíos")
	assert.Nil(t, attempt.NextAttemptAt)
	assert.Equal(t, entity.ConsolidatedStatusValid, con.docs["CON-202503"].Status)
	assert.Zero(t, sub.submitCalls, "no se reenvía un documento pendiente")
}

func TestScheduler_PendienteResueltoInvalidoAgendaReenvio(t *testing.T) {
	sub := &fakeSubmitter{statusResult: &myinvois.StatusResult{
		Status: myinvois.PortalStatusInvalid, Updated: true,
	}}
	sched, attempts, con := pendingMarchSetup(sub)

	require.NoError(t, sched.RunOnce(context.Background()))

	attempt := attempts.attempts[attemptKey(testCompanyID, 2025, 3)]
	assert.Equal(t, entity.AttemptStatusFailed, attempt.Status)
	assert.NotEmpty(t, attempt.LastError)
	require.NotNil(t, attempt.NextAttemptAt, "día 5: el reenvío cabe en la ventana")
	assert.Equal(t, 6, attempt.NextAttemptAt.Day())
	assert.Equal(t, entity.ConsolidatedStatusInvalid, con.docs["CON-202503"].Status)
}

func TestScheduler_PendienteSinRespuestaSigueAbierto(t *testing.T) {
	sub := &fakeSubmitter{statusResult: &myinvois.StatusResult{
		Status: myinvois.PortalStatusSubmitted, Updated: false,
	}}
	sched, attempts, _ := pendingMarchSetup(sub)

	require.NoError(t, sched.RunOnce(context.Background()))

	attempt := attempts.attempts[attemptKey(testCompanyID, 2025, 3)]
	assert.Equal(t, entity.AttemptStatusProcessing, attempt.Status)
	assert.Equal(t, 1, attempt.Attempts)
	require.NotNil(t, attempt.NextAttemptAt)
	assert.Equal(t, 6, attempt.NextAttemptAt.Day())
}

func TestScheduler_ExpiraIntentosDeVentanasCerradas(t *testing.T) {
	// Intento de febrero que quedó FAILED; en abril su ventana (3-7 de
	// marzo) ya cerró.
	stale := &entity.AutoConsolidationAttempt{
		ID: "at-feb", CompanyID: testCompanyID, Year: 2025, Month: time.February,
		Status: entity.AttemptStatusFailed, Attempts: 5,
	}
	inv := newFakeInvoiceRepo()
	con := newFakeConsolidatedRepo()
	lc, _ := newTestLifecycle(inv, con, nil, myinvois.AppEnvDev)
	attempts := newFakeAttemptRepo(stale)
	sched, _ := newTestScheduler(lc, attempts, con, true)

	require.NoError(t, sched.RunOnce(context.Background()))

	expired := attempts.attempts[attemptKey(testCompanyID, 2025, 2)]
	assert.Equal(t, entity.AttemptStatusExpired, expired.Status)
	assert.NotEmpty(t, expired.LastError)
	assert.Equal(t, 5, expired.Attempts, "los intentos consumidos se conservan")
}

func TestScheduler_IntentoTerminalNoSeToca(t *testing.T) {
	done := marchAttempt(entity.AttemptStatusCompleted, nil)
	done.ConsolidatedInvoiceID = "CON-202503"
	inv := newFakeInvoiceRepo(marchInvoice("a", 10, "500.00", "0.00"))
	con := newFakeConsolidatedRepo()
	lc, _ := newTestLifecycle(inv, con, nil, myinvois.AppEnvDev)
	attempts := newFakeAttemptRepo(done)
	sched, _ := newTestScheduler(lc, attempts, con, true)

	require.NoError(t, sched.RunOnce(context.Background()))

	attempt := attempts.attempts[attemptKey(testCompanyID, 2025, 3)]
	assert.Equal(t, entity.AttemptStatusCompleted, attempt.Status)
	assert.Equal(t, 1, attempt.Attempts)
}

func TestScheduler_StatusReportaVentanaEIntento(t *testing.T) {
	con := newFakeConsolidatedRepo()
	lc, _ := newTestLifecycle(newFakeInvoiceRepo(), con, nil, myinvois.AppEnvDev)
	attempts := newFakeAttemptRepo(marchAttempt(entity.AttemptStatusFailed, nil))
	sched, _ := newTestScheduler(lc, attempts, con, true)

	st, err := sched.Status(context.Background(), testCompanyID)
	require.NoError(t, err)
	assert.True(t, st.Enabled)
	assert.True(t, st.InWindow)
	assert.Equal(t, 2025, st.TargetYear)
	assert.Equal(t, 3, st.TargetMonth)
	require.NotNil(t, st.Attempt)
	assert.Equal(t, entity.AttemptStatusFailed, st.Attempt.Status)
}

func TestScheduler_UpdateSettings(t *testing.T) {
	con := newFakeConsolidatedRepo()
	lc, _ := newTestLifecycle(newFakeInvoiceRepo(), con, nil, myinvois.AppEnvDev)
	sched, settings := newTestScheduler(lc, newFakeAttemptRepo(), con, false)

	resp, err := sched.UpdateSettings(context.Background(), testCompanyID, &dto.AutoSettingsRequest{Enabled: true})
	require.NoError(t, err)
	assert.True(t, resp.Enabled)
	assert.True(t, settings.enabled[testCompanyID])
}
