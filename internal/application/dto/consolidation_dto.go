package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubmitConsolidationRequest consolida un período. Si invoice_ids está vacío,
// se incluyen todas las facturas elegibles del período.
type SubmitConsolidationRequest struct {
	Year       int      `json:"year"`
	Month      int      `json:"month"`
	InvoiceIDs []string `json:"invoice_ids,omitempty"`
}

// PreviewResponse totales calculados sin efectos secundarios.
type PreviewResponse struct {
	DocumentID       string          `json:"document_id"`
	Year             int             `json:"year"`
	Month            int             `json:"month"`
	NetTotal         decimal.Decimal `json:"net_total"`
	TaxTotal         decimal.Decimal `json:"tax_total"`
	RoundingTotal    decimal.Decimal `json:"rounding_total"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
	MemberCount      int             `json:"member_count"`
	MemberInvoiceIDs []string        `json:"member_invoice_ids"`
}

// RejectedDocumentDTO detalle de rechazo reportado por el portal.
type RejectedDocumentDTO struct {
	ID      string   `json:"id"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// ConsolidatedInvoiceResponse representación externa del documento consolidado.
type ConsolidatedInvoiceResponse struct {
	ID               string          `json:"id"`
	CompanyID        string          `json:"company_id"`
	Year             int             `json:"year"`
	Month            int             `json:"month"`
	Status           string          `json:"status"`
	NetTotal         decimal.Decimal `json:"net_total"`
	TaxTotal         decimal.Decimal `json:"tax_total"`
	RoundingTotal    decimal.Decimal `json:"rounding_total"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
	MemberCount      int             `json:"member_count"`
	MemberInvoiceIDs []string        `json:"member_invoice_ids,omitempty"`
	SubmissionUID    string          `json:"submission_uid,omitempty"`
	DocumentUUID     string          `json:"document_uuid,omitempty"`
	LongID           string          `json:"long_id,omitempty"`
	ValidatedAt      *time.Time      `json:"validated_at,omitempty"`
	CancelReason     string          `json:"cancel_reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// SubmitConsolidationResponse resultado del envío al portal.
type SubmitConsolidationResponse struct {
	Success  bool                         `json:"success"`
	Message  string                       `json:"message,omitempty"`
	Document *ConsolidatedInvoiceResponse `json:"document,omitempty"`
	Accepted []string                     `json:"accepted,omitempty"`
	Rejected []RejectedDocumentDTO        `json:"rejected,omitempty"`
}

// StatusRefreshResponse resultado de una consulta de estado.
type StatusRefreshResponse struct {
	Updated bool   `json:"updated"`
	Status  string `json:"status"`
	LongID  string `json:"long_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// CancelConsolidationRequest motivo opcional de cancelación.
type CancelConsolidationRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CancelResponse resultado de una cancelación.
type CancelResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// AutoAttemptResponse estado de un intento de consolidación automática.
type AutoAttemptResponse struct {
	Year                  int        `json:"year"`
	Month                 int        `json:"month"`
	Status                string     `json:"status"`
	Attempts              int        `json:"attempts"`
	LastAttemptAt         *time.Time `json:"last_attempt_at,omitempty"`
	NextAttemptAt         *time.Time `json:"next_attempt_at,omitempty"`
	ConsolidatedInvoiceID string     `json:"consolidated_invoice_id,omitempty"`
	LastError             string     `json:"last_error,omitempty"`
}

// AutoStatusResponse ventana actual más el intento del período objetivo.
type AutoStatusResponse struct {
	Enabled     bool                 `json:"enabled"`
	InWindow    bool                 `json:"in_window"`
	TargetYear  int                  `json:"target_year"`
	TargetMonth int                  `json:"target_month"`
	NextOpenAt  time.Time            `json:"next_open_at"`
	Attempt     *AutoAttemptResponse `json:"attempt,omitempty"`
}

// AutoSettingsRequest activa o desactiva la consolidación automática.
type AutoSettingsRequest struct {
	Enabled bool `json:"enabled"`
}

// AutoSettingsResponse configuración vigente.
type AutoSettingsResponse struct {
	Enabled bool `json:"enabled"`
}
