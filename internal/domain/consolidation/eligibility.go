package consolidation

import "github.com/tu-usuario/facturacion-pro/internal/domain/entity"

// EligibleInvoices filtra el conjunto candidato y devuelve las facturas
// elegibles para consolidar en el período objetivo. Una factura es elegible
// si y solo si:
//
//  1. su fecha de emisión cae en el período (zona de negocio UTC+8);
//  2. no está cancelada;
//  3. no es miembro de una consolidada cuyo estado sea VALID. Las facturas
//     bajo una consolidada CANCELLED o INVALID vuelven al pool elegible,
//     lo que habilita el reenvío tras una consolidación fallida.
//
// Un conjunto candidato vacío produce un resultado vacío, no un error: un
// período sin facturas elegibles es un desenlace normal tanto del flujo
// manual como del automático. El orden de salida es el de entrada; el motor
// de agregación impone el orden definitivo.
func EligibleInvoices(candidates []*entity.Invoice, period Period) []*entity.Invoice {
	eligible := make([]*entity.Invoice, 0, len(candidates))
	for _, inv := range candidates {
		if inv == nil {
			continue
		}
		if !period.Contains(inv.IssueDate) {
			continue
		}
		if inv.Status == entity.InvoiceStatusCancelled {
			continue
		}
		if inv.ConsolidatedInvoiceID != "" && inv.ConsolidatedStatus == entity.ConsolidatedStatusValid {
			continue
		}
		eligible = append(eligible, inv)
	}
	return eligible
}

// FilterBySelection restringe las elegibles a un subconjunto elegido por el
// operador (consolidación manual). Un ID desconocido simplemente no aparece
// en el resultado. selected vacío significa "todas las elegibles".
func FilterBySelection(eligible []*entity.Invoice, selected []string) []*entity.Invoice {
	if len(selected) == 0 {
		return eligible
	}
	wanted := make(map[string]bool, len(selected))
	for _, id := range selected {
		wanted[id] = true
	}
	out := make([]*entity.Invoice, 0, len(selected))
	for _, inv := range eligible {
		if wanted[inv.ID] {
			out = append(out, inv)
		}
	}
	return out
}
