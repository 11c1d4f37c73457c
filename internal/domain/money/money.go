// Package money implementa aritmética monetaria exacta en punto fijo de
// 2 decimales (la unidad mínima, el "sen", nunca se pierde por drift de
// float64). Todas las funciones son puras y nunca retornan error: un valor
// numérico inválido degrada a cero (política de tolerancia del sistema).
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// Places cantidad de decimales de la moneda (sen = 1/100).
const Places = 2

// Round redondea a 2 decimales con half-away-from-zero:
// 1.005 -> 1.01 y -1.005 -> -1.01 (no banker's rounding).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Add suma exacta redondeada a 2 decimales.
func Add(a, b decimal.Decimal) decimal.Decimal {
	return Round(a.Add(b))
}

// Multiply producto exacto (precio × cantidad) redondeado a 2 decimales.
func Multiply(price, quantity decimal.Decimal) decimal.Decimal {
	return Round(price.Mul(quantity))
}

// SumBy pliega una secuencia sumando Round(selector(item)) por cada elemento.
// Cada sumando se pre-redondea antes de acumular para que el error de
// redondeo nunca se componga: N facturas de 0.10 suman exactamente N×0.10.
func SumBy[T any](items []T, selector func(T) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(Round(selector(item)))
	}
	return Round(total)
}

// FromFloat convierte un float64 a decimal. NaN y ±Inf degradan a cero en
// lugar de fallar (decimal.NewFromFloat hace panic con no-finitos).
func FromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}
