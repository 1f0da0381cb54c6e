package deduction

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"sanse/backend/internal/domain"
)

// Catalog is the slice of the inventory store the engine needs: a bulk read
// of the dynamic-resolution subset and a batched stock decrement.
type Catalog interface {
	ListInventoryByTypes(ctx context.Context, types []string) ([]domain.InventoryItem, error)
	ApplyStockDeltas(ctx context.Context, deltas []domain.StockDelta) ([]domain.StockDeltaResult, error)
}

// Engine runs the matching → resolution → aggregation → application pipeline
// for the inventory deductions of one completed sale. Rules are injected per
// invocation; the engine keeps no rule state of its own.
type Engine struct {
	catalog Catalog
}

func NewEngine(catalog Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// ProcessSale evaluates every rule against every sale line item, aggregates
// the resolved decrements into one demand map, and applies it in a single
// store batch. All anomalies except an unreachable catalog are absorbed into
// the returned transcript.
func (e *Engine) ProcessSale(ctx context.Context, rules []Rule, items []domain.SaleLineItem) domain.DeductionResult {
	if len(rules) == 0 {
		return domain.DeductionResult{
			Success: true,
			Message: "no hay reglas de descuento configuradas",
		}
	}

	var logs []string

	subset, err := e.loadDynamicSubset(ctx, rules)
	if err != nil {
		return domain.DeductionResult{
			Error: fmt.Sprintf("no se pudo cargar el inventario dinamico: %v", err),
		}
	}

	demand := make(map[string]int)
	var demandOrder []string

	for _, item := range items {
		// Dedup scope is one line item: two rules matching the same item
		// must not double-charge one physical target. Different items in the
		// same sale still accumulate against shared targets.
		deducted := make(map[string]bool)

		for _, rule := range rules {
			if !matches(item, rule.Conditions) {
				continue
			}
			logs = append(logs, fmt.Sprintf("item %q (x%d): regla %q coincide", item.PerfumeName, item.Quantity, ruleLabel(rule)))

			for _, ded := range rule.Deductions {
				targetID, amount, target, warn := resolveDeduction(ded, item, subset)
				if warn != "" {
					logs = append(logs, warn)
					continue
				}
				if deducted[targetID] {
					logs = append(logs, fmt.Sprintf("item %q: inventario %s ya descontado por otra regla para este item, se omite", item.PerfumeName, targetID))
					continue
				}
				deducted[targetID] = true

				if _, exists := demand[targetID]; !exists {
					demandOrder = append(demandOrder, targetID)
				}
				demand[targetID] += amount

				if target != nil {
					logs = append(logs, fmt.Sprintf("item %q: regla %q resuelve %q (%s) -> -%d", item.PerfumeName, ruleLabel(rule), target.Nombre, targetID, amount))
				} else {
					logs = append(logs, fmt.Sprintf("item %q: regla %q descuenta inventario %s -> -%d", item.PerfumeName, ruleLabel(rule), targetID, amount))
				}
			}
		}
	}

	if len(demand) == 0 {
		logs = append(logs, "ninguna regla produjo descuentos para esta venta")
		return domain.DeductionResult{Success: true, Logs: logs}
	}

	deltas := make([]domain.StockDelta, 0, len(demandOrder))
	for _, id := range demandOrder {
		deltas = append(deltas, domain.StockDelta{InventoryID: id, Amount: demand[id]})
	}

	results, err := e.catalog.ApplyStockDeltas(ctx, deltas)
	if err != nil {
		return domain.DeductionResult{
			Error: fmt.Sprintf("no se pudieron aplicar los descuentos: %v", err),
			Logs:  logs,
		}
	}

	for _, res := range results {
		if !res.Found {
			logs = append(logs, fmt.Sprintf("ERROR: inventario %s no existe, se omite", res.InventoryID))
			continue
		}
		logs = append(logs, fmt.Sprintf("inventario %s: -%d (queda %d)", res.InventoryID, res.Applied, res.NewQuantity))
		if res.NewQuantity < 0 {
			// Negative stock is allowed but worth an operator's attention.
			logs = append(logs, fmt.Sprintf("ADVERTENCIA: inventario %s quedo en negativo (%d)", res.InventoryID, res.NewQuantity))
		}
	}

	return domain.DeductionResult{Success: true, Logs: logs}
}

// loadDynamicSubset fetches the Esencia/Etiqueta records once per invocation,
// and only when some rule actually needs fuzzy resolution. The subset is
// sorted by id so first-match resolution is deterministic instead of
// depending on catalog fetch order.
func (e *Engine) loadDynamicSubset(ctx context.Context, rules []Rule) ([]domain.InventoryItem, error) {
	needed := false
	for _, rule := range rules {
		for _, ded := range rule.Deductions {
			if ded.Type == DeductDynamicEssence || ded.Type == DeductDynamicLabel {
				needed = true
				break
			}
		}
	}
	if !needed {
		return nil, nil
	}

	subset, err := e.catalog.ListInventoryByTypes(ctx, []string{domain.TipoEsencia, domain.TipoEtiqueta})
	if err != nil {
		return nil, err
	}
	sort.Slice(subset, func(i, j int) bool { return subset[i].ID < subset[j].ID })
	return subset, nil
}

// resolveDeduction turns one configured deduction into a concrete (target,
// amount) pair. Fixed deductions pass the configured id through verbatim; a
// dangling id is only discovered at apply time. Dynamic deductions take the
// first subset record of the right tipo whose name contains the item's
// perfume name. A miss produces a warning instead of a pair.
func resolveDeduction(ded Deduction, item domain.SaleLineItem, subset []domain.InventoryItem) (string, int, *domain.InventoryItem, string) {
	amount := ded.Quantity * item.Quantity

	switch ded.Type {
	case DeductFixed:
		if ded.InventarioID == "" {
			return "", 0, nil, fmt.Sprintf("ADVERTENCIA: item %q: descuento fijo sin inventario_id, se omite", item.PerfumeName)
		}
		return ded.InventarioID, amount, nil, ""

	case DeductDynamicEssence:
		if target := findByName(subset, domain.TipoEsencia, item.PerfumeName); target != nil {
			return target.ID, amount, target, ""
		}
		return "", 0, nil, fmt.Sprintf("ADVERTENCIA: item %q: ninguna esencia coincide con el nombre, se omite", item.PerfumeName)

	case DeductDynamicLabel:
		if target := findByName(subset, domain.TipoEtiqueta, item.PerfumeName); target != nil {
			return target.ID, amount, target, ""
		}
		return "", 0, nil, fmt.Sprintf("ADVERTENCIA: item %q: ninguna etiqueta coincide con el nombre, se omite", item.PerfumeName)
	}

	return "", 0, nil, fmt.Sprintf("ADVERTENCIA: item %q: tipo de descuento %q desconocido, se omite", item.PerfumeName, ded.Type)
}

// findByName returns the first record of the given tipo whose nombre contains
// name, case-insensitively. First match wins; there is no scoring.
func findByName(subset []domain.InventoryItem, tipo string, name string) *domain.InventoryItem {
	needle := strings.ToLower(name)
	for i := range subset {
		if subset[i].Tipo != tipo {
			continue
		}
		if strings.Contains(strings.ToLower(subset[i].Nombre), needle) {
			return &subset[i]
		}
	}
	return nil
}

func ruleLabel(rule Rule) string {
	if rule.Name != "" {
		return rule.Name
	}
	return rule.ID
}
