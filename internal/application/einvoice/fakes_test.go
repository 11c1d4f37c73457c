package einvoice

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
	"github.com/tu-usuario/facturacion-pro/internal/infrastructure/myinvois"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

// Dobles de test escritos a mano: suficientes para guionar cada puerto sin
// frameworks de mocking.

const testCompanyID = "co-1"

// testNow día 5 de abril 2025 (UTC+8): dentro de la ventana, objetivo marzo.
var testNow = time.Date(2025, time.April, 5, 10, 0, 0, 0, time.FixedZone("UTC+8", 8*3600))

var testSupplier = myinvois.SupplierInfo{
	TIN:     "C25845632020",
	RegNo:   "201901234567",
	Name:    "Kedai Runcit Maju Sdn. Bhd.",
	Address: "Lot 5, Jalan Ampang",
	City:    "Kuala Lumpur",
	State:   "Wilayah Persekutuan",
	Country: "MYS",
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Env: "development", Level: "error"})
}

// marchInvoice factura emitida en marzo 2025, solo cabecera (sin líneas).
func marchInvoice(id string, day int, net, tax string) *entity.Invoice {
	issued := time.Date(2025, time.March, day, 12, 0, 0, 0, time.FixedZone("UTC+8", 8*3600))
	n := decimal.RequireFromString(net)
	tx := decimal.RequireFromString(tax)
	return &entity.Invoice{
		ID:         id,
		CompanyID:  testCompanyID,
		Number:     "INV-" + id,
		IssueDate:  issued,
		NetTotal:   n,
		TaxTotal:   tx,
		Rounding:   decimal.Zero,
		GrandTotal: n.Add(tx),
		Status:     entity.InvoiceStatusIssued,
		CreatedAt:  issued,
	}
}

// ── InvoiceRepository ──────────────────────────────────────────────────────────

type fakeInvoiceRepo struct {
	invoices []*entity.Invoice
	listErr  error

	// Claves companyID+"/"+consolidatedID: el ID de consolidada se repite
	// entre empresas, igual que en la tabla real.
	linked   map[string][]string
	released []string
}

func newFakeInvoiceRepo(invoices ...*entity.Invoice) *fakeInvoiceRepo {
	return &fakeInvoiceRepo{invoices: invoices, linked: make(map[string][]string)}
}

func (f *fakeInvoiceRepo) ListByPeriod(_ context.Context, _ string, _ int, _ int) ([]*entity.Invoice, error) {
	return f.invoices, f.listErr
}

func (f *fakeInvoiceRepo) LinkToConsolidation(_ context.Context, companyID string, invoiceIDs []string, consolidatedID string) error {
	f.linked[companyID+"/"+consolidatedID] = append([]string(nil), invoiceIDs...)
	return nil
}

func (f *fakeInvoiceRepo) ReleaseFromConsolidation(_ context.Context, companyID string, consolidatedID string) error {
	f.released = append(f.released, companyID+"/"+consolidatedID)
	return nil
}

// ── ConsolidatedInvoiceRepository ──────────────────────────────────────────────

type fakeConsolidatedRepo struct {
	docs map[string]*entity.ConsolidatedInvoice // por ID
}

func newFakeConsolidatedRepo(docs ...*entity.ConsolidatedInvoice) *fakeConsolidatedRepo {
	f := &fakeConsolidatedRepo{docs: make(map[string]*entity.ConsolidatedInvoice)}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *fakeConsolidatedRepo) Create(_ context.Context, doc *entity.ConsolidatedInvoice) error {
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeConsolidatedRepo) Update(_ context.Context, doc *entity.ConsolidatedInvoice) error {
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeConsolidatedRepo) GetByID(_ context.Context, companyID, id string) (*entity.ConsolidatedInvoice, error) {
	d, ok := f.docs[id]
	if !ok || d.CompanyID != companyID {
		return nil, nil
	}
	return d, nil
}

func (f *fakeConsolidatedRepo) GetByPeriod(_ context.Context, companyID string, year, month int) (*entity.ConsolidatedInvoice, error) {
	for _, d := range f.docs {
		if d.CompanyID == companyID && d.Year == year && int(d.Month) == month {
			return d, nil
		}
	}
	return nil, nil
}

func (f *fakeConsolidatedRepo) ListByYear(_ context.Context, companyID string, year int) ([]*entity.ConsolidatedInvoice, error) {
	var out []*entity.ConsolidatedInvoice
	for _, d := range f.docs {
		if d.CompanyID == companyID && d.Year == year {
			out = append(out, d)
		}
	}
	return out, nil
}

// ── TxRunner ───────────────────────────────────────────────────────────────────

type fakeTxRunner struct {
	inv   *fakeInvoiceRepo
	con   *fakeConsolidatedRepo
	calls int
}

func (f *fakeTxRunner) RunConsolidation(_ context.Context, fn func(
	repository.InvoiceRepository,
	repository.ConsolidatedInvoiceRepository,
) error) error {
	f.calls++
	return fn(f.inv, f.con)
}

// ── DocumentSubmitter ──────────────────────────────────────────────────────────

type fakeSubmitter struct {
	submitResult *myinvois.SubmitResult
	submitErr    error
	statusResult *myinvois.StatusResult
	statusErr    error
	cancelResult *myinvois.CancelResult
	cancelErr    error

	submitCalls int
	lastCancel  string // última razón de cancelación recibida
}

func (f *fakeSubmitter) Submit(_ context.Context, _ *myinvois.SubmitRequest) (*myinvois.SubmitResult, error) {
	f.submitCalls++
	return f.submitResult, f.submitErr
}

func (f *fakeSubmitter) GetStatus(_ context.Context, _ string) (*myinvois.StatusResult, error) {
	return f.statusResult, f.statusErr
}

func (f *fakeSubmitter) Cancel(_ context.Context, _ string, reason string) (*myinvois.CancelResult, error) {
	f.lastCancel = reason
	return f.cancelResult, f.cancelErr
}

// fakeSigner devuelve el documento tal cual.
type fakeSigner struct{}

func (fakeSigner) Sign(xmlBytes []byte, _ tls.Certificate) ([]byte, error) { return xmlBytes, nil }

// ── Scheduler: intentos, settings, empresas ────────────────────────────────────

type fakeAttemptRepo struct {
	attempts map[string]*entity.AutoConsolidationAttempt // por CompanyID/Year/Month
}

func attemptKey(companyID string, year, month int) string {
	return companyID + "/" + time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("200601")
}

func newFakeAttemptRepo(attempts ...*entity.AutoConsolidationAttempt) *fakeAttemptRepo {
	f := &fakeAttemptRepo{attempts: make(map[string]*entity.AutoConsolidationAttempt)}
	for _, a := range attempts {
		f.attempts[attemptKey(a.CompanyID, a.Year, int(a.Month))] = a
	}
	return f
}

func (f *fakeAttemptRepo) GetByPeriod(_ context.Context, companyID string, year, month int) (*entity.AutoConsolidationAttempt, error) {
	return f.attempts[attemptKey(companyID, year, month)], nil
}

func (f *fakeAttemptRepo) Upsert(_ context.Context, attempt *entity.AutoConsolidationAttempt) error {
	f.attempts[attemptKey(attempt.CompanyID, attempt.Year, int(attempt.Month))] = attempt
	return nil
}

func (f *fakeAttemptRepo) ListOpen(_ context.Context, companyID string) ([]*entity.AutoConsolidationAttempt, error) {
	var out []*entity.AutoConsolidationAttempt
	for _, a := range f.attempts {
		if a.CompanyID == companyID && !entity.AttemptIsTerminal(a.Status) {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeSettingsRepo struct {
	enabled map[string]bool
}

func (f *fakeSettingsRepo) GetAutoConsolidationEnabled(_ context.Context, companyID string) (bool, error) {
	return f.enabled[companyID], nil
}

func (f *fakeSettingsRepo) SetAutoConsolidationEnabled(_ context.Context, companyID string, enabled bool) error {
	if f.enabled == nil {
		f.enabled = make(map[string]bool)
	}
	f.enabled[companyID] = enabled
	return nil
}

type fakeCompanyProvider struct{ ids []string }

func (f *fakeCompanyProvider) ListAutoConsolidationCompanies(_ context.Context) ([]string, error) {
	return f.ids, nil
}

// ── Constructores de casos de uso para tests ───────────────────────────────────

// newTestLifecycle arma el caso de uso con los fakes dados. Con submitter nil
// y env dev el envío se simula; con submitter y env sandbox se ejercita el
// camino real sin certificado (documento sin firmar).
func newTestLifecycle(inv *fakeInvoiceRepo, con *fakeConsolidatedRepo, sub myinvois.DocumentSubmitter, env string) (*ConsolidationUseCase, *fakeTxRunner) {
	tx := &fakeTxRunner{inv: inv, con: con}
	uc := NewConsolidationUseCase(
		tx, inv, con,
		myinvois.NewDocumentBuilder(), fakeSigner{}, sub,
		MyInvoisConfig{AppEnv: env, Supplier: testSupplier},
		testLogger(),
	)
	uc.now = func() time.Time { return testNow }
	return uc, tx
}

func newTestScheduler(lc *ConsolidationUseCase, attempts *fakeAttemptRepo, con *fakeConsolidatedRepo, enabled bool) (*AutoConsolidationUseCase, *fakeSettingsRepo) {
	settings := &fakeSettingsRepo{enabled: map[string]bool{testCompanyID: enabled}}
	uc := NewAutoConsolidationUseCase(
		lc, attempts, con, settings,
		&fakeCompanyProvider{ids: []string{testCompanyID}},
		testLogger(),
	)
	uc.now = func() time.Time { return testNow }
	return uc, settings
}
