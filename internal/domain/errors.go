package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound       = errors.New("recurso no encontrado")
	ErrInvalidInput   = errors.New("entrada inválida")
	ErrInvalidPeriod  = errors.New("período inválido")
	ErrEmptySelection = errors.New("no hay facturas elegibles en la selección")
	ErrUnauthorized   = errors.New("no autorizado")
	ErrForbidden      = errors.New("acceso denegado")
	ErrConflict       = errors.New("conflicto con el estado actual")
	// ErrAlreadyConsolidated indica que el período ya tiene una factura
	// consolidada válida (regla de idempotencia, anti doble facturación).
	ErrAlreadyConsolidated = errors.New("el período ya tiene una consolidación válida")
	// ErrInvalidTransition indica una operación de ciclo de vida no permitida
	// para el estado actual del documento (ej: cancelar un documento Pending).
	ErrInvalidTransition = errors.New("transición de estado no permitida")
)
