package consolidation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tu-usuario/facturacion-pro/internal/domain/consolidation"
)

func atDay(day int) time.Time {
	return time.Date(2025, 4, day, 12, 0, 0, 0, consolidation.BusinessTimeZone)
}

// ──────────────────────────────────────────────────────────────────────────────
// Bordes de la ventana: día 2 fuera, día 3 dentro, día 7 dentro, día 8 fuera.
// Dentro de la ventana el período objetivo es SIEMPRE el mes anterior.
// ──────────────────────────────────────────────────────────────────────────────

func TestComputeWindow_Bordes(t *testing.T) {
	march := consolidation.Period{Year: 2025, Month: time.March}

	w := consolidation.ComputeWindow(atDay(2))
	assert.False(t, w.InWindow, "día 2: fuera de ventana")
	assert.Equal(t, march, w.Target)
	assert.Equal(t, 3, w.NextOpen.Day())
	assert.Equal(t, time.April, w.NextOpen.Month(), "antes del día 3 la ventana abre este mismo mes")

	w = consolidation.ComputeWindow(atDay(3))
	assert.True(t, w.InWindow, "día 3: dentro de ventana")
	assert.Equal(t, march, w.Target, "objetivo = mes anterior")

	w = consolidation.ComputeWindow(atDay(7))
	assert.True(t, w.InWindow, "día 7: último día de ventana")
	assert.Equal(t, march, w.Target)

	w = consolidation.ComputeWindow(atDay(8))
	assert.False(t, w.InWindow, "día 8: ventana cerrada")
	assert.Equal(t, 3, w.NextOpen.Day())
	assert.Equal(t, time.May, w.NextOpen.Month(), "la próxima ventana es el día 3 del mes siguiente")
}

// La ventana se evalúa en UTC+8: un reloj del servidor en UTC el día 2 a las
// 20:00 ya es día 3 en la zona de negocio.
func TestComputeWindow_ConversionUTC(t *testing.T) {
	utc := time.Date(2025, 4, 2, 20, 0, 0, 0, time.UTC) // 03-abr 04:00 UTC+8
	w := consolidation.ComputeWindow(utc)
	assert.True(t, w.InWindow)
	assert.Equal(t, consolidation.Period{Year: 2025, Month: time.March}, w.Target)
}

func TestComputeWindow_EneroApuntaADiciembre(t *testing.T) {
	jan := time.Date(2026, 1, 5, 8, 0, 0, 0, consolidation.BusinessTimeZone)
	w := consolidation.ComputeWindow(jan)
	assert.True(t, w.InWindow)
	assert.Equal(t, consolidation.Period{Year: 2025, Month: time.December}, w.Target)
}

func TestWindowClosedFor(t *testing.T) {
	march := consolidation.Period{Year: 2025, Month: time.March}

	assert.False(t, consolidation.WindowClosedFor(march, atDay(7)),
		"el día 7 la ventana de marzo sigue abierta")
	assert.True(t, consolidation.WindowClosedFor(march, atDay(8)),
		"desde el día 8 del mes siguiente la ventana de marzo expiró")
	assert.True(t, consolidation.WindowClosedFor(march, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
		"meses después sigue expirada")
}

func TestSameBusinessDay(t *testing.T) {
	a := time.Date(2025, 4, 3, 23, 0, 0, 0, consolidation.BusinessTimeZone)
	b := time.Date(2025, 4, 3, 1, 0, 0, 0, consolidation.BusinessTimeZone)
	assert.True(t, consolidation.SameBusinessDay(a, b))

	// 03-abr 18:00 UTC = 04-abr 02:00 UTC+8: días distintos de negocio
	c := time.Date(2025, 4, 3, 18, 0, 0, 0, time.UTC)
	assert.False(t, consolidation.SameBusinessDay(a, c))
}
