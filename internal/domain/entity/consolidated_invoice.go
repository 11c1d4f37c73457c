package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados del ciclo de vida de una factura consolidada ante la autoridad
// tributaria (MyInvois / LHDN).
const (
	ConsolidatedStatusPending   = "PENDING"   // Enviada, validación asíncrona en curso
	ConsolidatedStatusValid     = "VALID"     // Validada por la autoridad
	ConsolidatedStatusInvalid   = "INVALID"   // Rechazada en validación
	ConsolidatedStatusCancelled = "CANCELLED" // Cancelada por el emisor (estado, no borrado)
)

// CanCancel indica si un documento en el estado dado puede cancelarse.
// Un documento Pending debe resolverse primero vía sondeo de estado; esto es
// regla de negocio, no limitación técnica.
func CanCancel(status string) bool {
	return status == ConsolidatedStatusValid || status == ConsolidatedStatusInvalid
}

// CanPoll indica si el sondeo de estado aplica (solo mientras Pending).
func CanPoll(status string) bool {
	return status == ConsolidatedStatusPending
}

// ConsolidatedInvoice documento consolidado de un período (año, mes).
// Lo crea el motor de agregación al enviar; solo el ciclo de vida lo muta;
// nunca se borra: la cancelación es un estado.
type ConsolidatedInvoice struct {
	ID        string // determinista: CON-{año}{mes:02d}
	CompanyID string
	Year      int
	Month     time.Month // 1-based en todo el sistema

	// MemberInvoiceIDs facturas miembro, ordenadas de más antigua a más
	// reciente por fecha de creación.
	MemberInvoiceIDs []string

	// Totales agregados. Son un caché: siempre re-derivables de las
	// facturas miembro con el motor de agregación.
	NetTotal      decimal.Decimal
	TaxTotal      decimal.Decimal
	RoundingTotal decimal.Decimal
	GrandTotal    decimal.Decimal

	Status        string
	SubmissionUID string // referencia de la entrega (submission) en MyInvois
	DocumentUUID  string // UUID del documento asignado por la autoridad
	LongID        string // long-id de validación (link público de verificación)
	ValidatedAt   *time.Time
	CancelReason  string
	// RejectedDetail lista estructurada de rechazos de la autoridad
	// (JSON: [{id, error:{code, message, details[]}}]), preservada tal cual.
	RejectedDetail string

	CreatedAt time.Time
	UpdatedAt time.Time
}
