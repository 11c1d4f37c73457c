// Package myinvois implementa el contrato del lado del emisor contra el
// portal de factura electrónica MyInvois (LHDN, Malasia): construcción del
// documento UBL 2.1 consolidado, firma digital y llamadas REST de envío,
// consulta de estado y cancelación. Las reglas de validación de la autoridad
// NO se reimplementan aquí; solo el contrato request/response.
package myinvois

import (
	"context"
	"time"
)

// ── Constantes de entorno ──────────────────────────────────────────────────────

const (
	// AppEnvDev modo local: no llama al portal, simula aceptación.
	AppEnvDev = "dev"
	// AppEnvSandbox ambiente de pruebas (preprod) de MyInvois.
	AppEnvSandbox = "sandbox"
	// AppEnvProd ambiente de producción.
	AppEnvProd = "prod"

	baseURLSandbox = "https://preprod-api.myinvois.hasil.gov.my"
	baseURLProd    = "https://api.myinvois.hasil.gov.my"

	// Estados de documento que reporta el portal.
	PortalStatusSubmitted = "Submitted"
	PortalStatusValid     = "Valid"
	PortalStatusInvalid   = "Invalid"
	PortalStatusCancelled = "Cancelled"
)

// ── Contratos de respuesta ─────────────────────────────────────────────────────

// DocumentError error estructurado de la autoridad para un documento
// rechazado. Code/Message/Details se preservan tal cual llegan.
type DocumentError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// AcceptedDocument documento aceptado dentro de una entrega.
type AcceptedDocument struct {
	ID   string `json:"id"`   // codeNumber interno (CON-AAAAMM)
	UUID string `json:"uuid"` // UUID asignado por la autoridad
}

// RejectedDocument documento rechazado dentro de una entrega.
type RejectedDocument struct {
	ID    string        `json:"id"`
	Error DocumentError `json:"error"`
}

// SubmitResult resultado de la entrega de un documento consolidado.
// Una entrega con aceptados Y rechazados es un desenlace terminal válido
// (éxito parcial), no un fallo total: el caller debe inspeccionar ambas
// listas.
type SubmitResult struct {
	Success       bool
	SubmissionUID string // referencia de la entrega en el portal
	Status        string // Submitted|Valid|Invalid según validación inmediata
	UUID          string // UUID del documento (cuando fue aceptado)
	LongID        string // long-id de validación (vacío mientras Pending)
	ValidatedAt   *time.Time
	Accepted      []AcceptedDocument
	Rejected      []RejectedDocument
}

// StatusResult resultado de la consulta de estado de un documento.
// Updated=false indica "sin cambios", que no es un error.
type StatusResult struct {
	Status      string
	LongID      string
	ValidatedAt *time.Time
	Updated     bool
}

// CancelResult resultado de la cancelación de un documento.
type CancelResult struct {
	Success bool
	Message string
}

// ── Puerto (interfaz) ──────────────────────────────────────────────────────────

// SubmitRequest documento listo para entregar: XML UBL firmado más los
// metadatos que exige el portal.
type SubmitRequest struct {
	CodeNumber  string // identificador interno del documento (CON-AAAAMM)
	DocumentXML []byte // UBL 2.1 firmado
}

// DocumentSubmitter puerto de salida hacia la autoridad tributaria. La
// implementación concreta usa REST; para tests se inyecta un doble.
type DocumentSubmitter interface {
	// Submit entrega el documento consolidado. Las llamadas pueden tardar
	// varios segundos; la validación puede resolverse después (Pending).
	Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error)

	// GetStatus consulta el estado de validación del documento por su UUID.
	GetStatus(ctx context.Context, documentUUID string) (*StatusResult, error)

	// Cancel cancela un documento ya validado (o inválido) con una razón.
	Cancel(ctx context.Context, documentUUID, reason string) (*CancelResult, error)
}
