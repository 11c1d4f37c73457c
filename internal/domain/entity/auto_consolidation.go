package entity

import "time"

// Estados de un intento de consolidación automática. Es un estado de
// *intento*, independiente del estado de validación del documento: un
// intento Completed puede apuntar a un documento aún Pending ante la
// autoridad.
const (
	AttemptStatusPending    = "PENDING"    // agendado, aún sin ejecutar
	AttemptStatusProcessing = "PROCESSING" // ejecución en curso
	AttemptStatusCompleted  = "COMPLETED"  // consolidada creada y aceptada
	AttemptStatusFailed     = "FAILED"     // error; reintentable dentro de la ventana
	AttemptStatusExpired    = "EXPIRED"    // ventana cerrada (día > 7) sin éxito
	AttemptStatusSkipped    = "SKIPPED"    // ya existía consolidada válida o no había facturas
)

// AttemptIsTerminal indica si el intento ya no admite más ejecuciones
// automáticas (requiere consolidación manual de ahí en adelante).
func AttemptIsTerminal(status string) bool {
	switch status {
	case AttemptStatusCompleted, AttemptStatusExpired, AttemptStatusSkipped:
		return true
	}
	return false
}

// AutoConsolidationAttempt registro de intento automático por (empresa,
// año, mes). Existe a lo más un registro por período y se muta a través de
// los reintentos; nunca se duplica.
type AutoConsolidationAttempt struct {
	ID        string
	CompanyID string
	Year      int
	Month     time.Month

	Status   string
	Attempts int // ejecuciones realizadas (máx. 5: días 3 a 7)

	LastAttemptAt *time.Time
	NextAttemptAt *time.Time

	// ConsolidatedInvoiceID documento resultante cuando Status = COMPLETED
	// (o el preexistente cuando SKIPPED por idempotencia).
	ConsolidatedInvoiceID string
	LastError             string

	CreatedAt time.Time
	UpdatedAt time.Time
}
