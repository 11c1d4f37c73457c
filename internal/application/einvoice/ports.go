// Package einvoice orquesta el ciclo de vida de la factura consolidada:
// previsualización, envío al portal, sondeo de estado, cancelación y la
// consolidación automática agendada. El dominio decide; esta capa coordina
// repositorios, firma y portal.
package einvoice

import (
	"context"

	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
	"github.com/tu-usuario/facturacion-pro/internal/infrastructure/myinvois"
)

// ConsolidationTxRunner ejecuta una función dentro de una transacción que
// incluye los repos de facturas y de consolidadas. El enlace factura↔
// consolidada y la fila de la consolidada se confirman o revierten juntos.
type ConsolidationTxRunner interface {
	RunConsolidation(ctx context.Context, fn func(
		invoiceRepo repository.InvoiceRepository,
		consolidatedRepo repository.ConsolidatedInvoiceRepository,
	) error) error
}

// CompanyProvider enumera las empresas sobre las que corre el scheduler de
// consolidación automática (las que tienen el toggle persistido).
type CompanyProvider interface {
	ListAutoConsolidationCompanies(ctx context.Context) ([]string, error)
}

// MyInvoisConfig configuración del lado del emisor para firmar y entregar.
//
// Modos de operación (AppEnv):
//   - "dev"     → Genera (y firma si hay certificado) el XML, NO llama al
//     portal. El documento queda VALID de inmediato (mock).
//   - "sandbox" → Entrega al ambiente preprod de MyInvois.
//   - "prod"    → Entrega al ambiente de producción.
type MyInvoisConfig struct {
	AppEnv       string
	Supplier     myinvois.SupplierInfo
	CertPath     string
	CertKeyPath  string
	CertPassword string
}

// ConsolidatedPDFGenerator genera la representación gráfica de la factura
// consolidada (una página con el detalle de las facturas miembro).
type ConsolidatedPDFGenerator interface {
	GenerateConsolidatedPDF(
		ctx context.Context,
		doc *entity.ConsolidatedInvoice,
		supplier myinvois.SupplierInfo,
		members []*entity.Invoice,
	) ([]byte, error)
}

// DefaultCancelReason razón registrada cuando el emisor no aporta una.
const DefaultCancelReason = "Cancelado por el emisor"
