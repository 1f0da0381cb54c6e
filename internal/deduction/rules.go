package deduction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ConfigKey is the well-known configuration name the serialized rule list is
// stored under. The rule editor writes the same key.
const ConfigKey = "reglas_descuento_inventario"

const (
	OpEquals   = "eq"
	OpContains = "contains"
)

const (
	DeductFixed          = "fixed"
	DeductDynamicEssence = "dynamic_essence"
	DeductDynamicLabel   = "dynamic_label"
)

// Condition compares one sale line item field against a configured value.
// Field is either one of the legacy names (genero, nombre, categoria,
// proveedor, botella, devolvio_envase) or a dynamic attribute key.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// Deduction names one inventory decrement to apply when the owning rule
// matches. Quantity is a per-unit multiplier; the resolved amount is
// Quantity times the sale line item quantity. InventarioID is meaningful
// only for fixed deductions.
type Deduction struct {
	Type         string `json:"type"`
	InventarioID string `json:"inventario_id,omitempty"`
	Quantity     int    `json:"quantity"`
}

type Rule struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Conditions []Condition `json:"conditions"`
	Deductions []Deduction `json:"deductions"`
}

// ParseRules decodes the serialized rule list. A decode failure here is the
// only fatal error of the whole pipeline; it aborts before any mutation.
func ParseRules(raw string) ([]Rule, error) {
	var rules []Rule
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		return nil, fmt.Errorf("configuracion de reglas invalida: %w", err)
	}
	return rules, nil
}

var legacyFieldNames = map[string]bool{
	"genero":          true,
	"nombre":          true,
	"categoria":       true,
	"proveedor":       true,
	"botella":         true,
	"devolvio_envase": true,
}

// LintRules checks a rule set for authoring mistakes that would otherwise
// fail silently at sale time: unknown condition fields (which compare against
// the empty string and almost never match), empty configured values, fixed
// deductions without a target id, and non-positive multipliers. Returned
// warnings are advisory; the rule set is saved regardless.
func LintRules(rules []Rule) []string {
	var warnings []string
	for _, rule := range rules {
		label := rule.Name
		if label == "" {
			label = rule.ID
		}
		for _, cond := range rule.Conditions {
			field := strings.ToLower(strings.TrimSpace(cond.Field))
			if field == "" {
				warnings = append(warnings, fmt.Sprintf("regla %q: condicion sin campo", label))
				continue
			}
			if !legacyFieldNames[field] {
				warnings = append(warnings, fmt.Sprintf("regla %q: campo %q no es un campo fijo; se buscara como atributo dinamico y no coincidira si el item no lo trae", label, cond.Field))
			}
			if cond.Operator != OpEquals && cond.Operator != OpContains {
				warnings = append(warnings, fmt.Sprintf("regla %q: operador %q desconocido", label, cond.Operator))
			}
			if strings.TrimSpace(cond.Value) == "" && cond.Operator == OpContains {
				warnings = append(warnings, fmt.Sprintf("regla %q: condicion 'contains' con valor vacio coincide con todo", label))
			}
		}
		if len(rule.Deductions) == 0 {
			warnings = append(warnings, fmt.Sprintf("regla %q: no tiene descuentos configurados", label))
		}
		for _, ded := range rule.Deductions {
			switch ded.Type {
			case DeductFixed:
				if strings.TrimSpace(ded.InventarioID) == "" {
					warnings = append(warnings, fmt.Sprintf("regla %q: descuento fijo sin inventario_id", label))
				}
			case DeductDynamicEssence, DeductDynamicLabel:
			default:
				warnings = append(warnings, fmt.Sprintf("regla %q: tipo de descuento %q desconocido", label, ded.Type))
			}
			if ded.Quantity < 1 {
				warnings = append(warnings, fmt.Sprintf("regla %q: cantidad %d no es positiva", label, ded.Quantity))
			}
		}
	}
	return warnings
}
