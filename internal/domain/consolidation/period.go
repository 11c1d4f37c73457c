// Package consolidation implementa el núcleo puro del motor de consolidación
// de facturas electrónicas: período fiscal, resolución de elegibilidad,
// agregación monetaria y ventana de consolidación automática. No tiene
// efectos colaterales; la persistencia y la autoridad tributaria viven en
// capas superiores.
package consolidation

import (
	"fmt"
	"time"

	"github.com/tu-usuario/facturacion-pro/internal/domain"
)

// BusinessTimeZone zona horaria de negocio fija (UTC+8). Toda la aritmética
// de períodos y de ventana se hace en esta zona, independiente del huso del
// servidor.
var BusinessTimeZone = time.FixedZone("UTC+8", 8*60*60)

// Period período fiscal objetivo de una consolidación. El mes es 1-based en
// todo el sistema (time.Month); el formato del identificador es el único
// lugar donde el mes se serializa.
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod valida y construye un período.
func NewPeriod(year, month int) (Period, error) {
	if year < 2000 || year > 2999 || month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: año=%d mes=%d", domain.ErrInvalidPeriod, year, month)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// DocumentID identificador determinista de la consolidada del período.
// Formato compatible bit a bit con los registros existentes:
// CON-{año}{mes:2 dígitos}, ej. marzo 2025 -> "CON-202503".
func (p Period) DocumentID() string {
	return fmt.Sprintf("CON-%04d%02d", p.Year, int(p.Month))
}

// Previous el mes calendario anterior.
func (p Period) Previous() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Contains indica si t (interpretado en la zona de negocio) cae en el período.
func (p Period) Contains(t time.Time) bool {
	local := t.In(BusinessTimeZone)
	return local.Year() == p.Year && local.Month() == p.Month
}

// String representación legible "2025-03".
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}
