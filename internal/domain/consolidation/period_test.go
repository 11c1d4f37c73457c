package consolidation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/facturacion-pro/internal/domain/consolidation"
)

// ──────────────────────────────────────────────────────────────────────────────
// El identificador del documento consolidado debe ser compatible bit a bit
// con los registros existentes: CON-{año}{mes:2 dígitos}, mes 1-based.
// ──────────────────────────────────────────────────────────────────────────────

func TestDocumentID_FormatoExacto(t *testing.T) {
	cases := []struct {
		year, month int
		want        string
	}{
		{2025, 3, "CON-202503"},
		{2025, 12, "CON-202512"},
		{2024, 1, "CON-202401"},
	}
	for _, c := range cases {
		p, err := consolidation.NewPeriod(c.year, c.month)
		require.NoError(t, err)
		assert.Equal(t, c.want, p.DocumentID())
	}
}

// TestDocumentID_Idempotente: generar el identificador dos veces para el
// mismo período produce exactamente el mismo string.
func TestDocumentID_Idempotente(t *testing.T) {
	p, err := consolidation.NewPeriod(2025, 7)
	require.NoError(t, err)
	assert.Equal(t, p.DocumentID(), p.DocumentID())
}

func TestNewPeriod_RechazaMesInvalido(t *testing.T) {
	_, err := consolidation.NewPeriod(2025, 0)
	assert.Error(t, err, "mes 0 no existe: el sistema es 1-based")

	_, err = consolidation.NewPeriod(2025, 13)
	assert.Error(t, err)
}

func TestPrevious_CruzaAnio(t *testing.T) {
	p := consolidation.Period{Year: 2025, Month: time.January}
	prev := p.Previous()
	assert.Equal(t, 2024, prev.Year)
	assert.Equal(t, time.December, prev.Month)
}

// TestContains_ZonaDeNegocio: la pertenencia al período se decide en UTC+8.
// Un instante del 31 de marzo 23:00 UTC ya es 1 de abril en la zona de
// negocio.
func TestContains_ZonaDeNegocio(t *testing.T) {
	march := consolidation.Period{Year: 2025, Month: time.March}
	april := consolidation.Period{Year: 2025, Month: time.April}

	utcLateMarch := time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)
	assert.False(t, march.Contains(utcLateMarch))
	assert.True(t, april.Contains(utcLateMarch))
}
