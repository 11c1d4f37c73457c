package consolidation

import "time"

// Días del mes (inclusive) en que corre la consolidación automática del mes
// anterior. La autoridad exige la consolidada dentro de la primera semana
// del mes siguiente; el margen 3–7 da a lo más 5 reintentos diarios.
const (
	WindowOpenDay  = 3
	WindowCloseDay = 7
)

// Window resultado del cálculo de ventana para un instante dado.
type Window struct {
	// InWindow true si el día del mes (en UTC+8) está en [3, 7].
	InWindow bool
	// Target período a consolidar cuando InWindow: siempre el mes
	// calendario anterior. Con InWindow false es el período de la ventana
	// de NextOpen (el que la próxima apertura va a consolidar), no un
	// objetivo accionable ya.
	Target Period
	// NextOpen inicio de la próxima ventana (día 3 a las 00:00 UTC+8).
	// Con InWindow true es el inicio de la ventana del mes siguiente.
	NextOpen time.Time
}

// ComputeWindow función pura del reloj: decide si el instante actual cae en
// la ventana de consolidación automática y cuál es el período objetivo.
// Toda la aritmética se hace en la zona de negocio fija UTC+8.
func ComputeWindow(now time.Time) Window {
	local := now.In(BusinessTimeZone)
	current := Period{Year: local.Year(), Month: local.Month()}
	day := local.Day()

	openThisMonth := time.Date(local.Year(), local.Month(), WindowOpenDay, 0, 0, 0, 0, BusinessTimeZone)
	openNextMonth := time.Date(local.Year(), local.Month()+1, WindowOpenDay, 0, 0, 0, 0, BusinessTimeZone)

	switch {
	case day < WindowOpenDay:
		return Window{InWindow: false, Target: current.Previous(), NextOpen: openThisMonth}
	case day <= WindowCloseDay:
		return Window{InWindow: true, Target: current.Previous(), NextOpen: openNextMonth}
	default:
		// Ventana cerrada: el período anterior ya solo admite consolidación
		// manual; la próxima ventana apunta al mes en curso.
		return Window{InWindow: false, Target: current, NextOpen: openNextMonth}
	}
}

// WindowClosedFor indica si la ventana automática del período target ya
// cerró en el instante now (día > 7 del mes siguiente al período, UTC+8).
// Es el mecanismo de expiración de los intentos: no hay timer aparte.
func WindowClosedFor(target Period, now time.Time) bool {
	closeAt := time.Date(target.Year, target.Month+1, WindowCloseDay+1, 0, 0, 0, 0, BusinessTimeZone)
	return !now.In(BusinessTimeZone).Before(closeAt)
}

// SameBusinessDay true si a y b caen en el mismo día calendario UTC+8.
// Gobierna la política de "un reintento por día" dentro de la ventana.
func SameBusinessDay(a, b time.Time) bool {
	la, lb := a.In(BusinessTimeZone), b.In(BusinessTimeZone)
	return la.Year() == lb.Year() && la.Month() == lb.Month() && la.Day() == lb.Day()
}
