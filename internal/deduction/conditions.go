package deduction

import (
	"strings"

	"sanse/backend/internal/domain"
)

// itemFieldValue resolves a condition field against a sale line item. The six
// legacy fields map to the typed struct fields; anything else is looked up in
// the dynamic attribute map. A missing attribute yields ("", false) so the
// caller can tell "not present" from "present but empty", though both compare
// the same way.
func itemFieldValue(item domain.SaleLineItem, field string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "genero":
		return item.Gender, true
	case "nombre":
		return item.PerfumeName, true
	case "categoria":
		return item.Category, true
	case "proveedor":
		return item.Provider, true
	case "botella":
		return item.BottleType, true
	case "devolvio_envase":
		if item.ReturnedBottle {
			return "Si", true
		}
		return "No", true
	}
	val, ok := item.Attributes[field]
	return val, ok
}

// matches reports whether every condition holds for the item (logical AND).
// Values compare as case-insensitive strings; an absent field compares as the
// empty string, so an unknown field silently fails eq against any non-empty
// configured value rather than raising an error.
func matches(item domain.SaleLineItem, conditions []Condition) bool {
	for _, cond := range conditions {
		itemValue, _ := itemFieldValue(item, cond.Field)
		got := strings.ToLower(itemValue)
		want := strings.ToLower(cond.Value)

		switch cond.Operator {
		case OpEquals:
			if got != want {
				return false
			}
		case OpContains:
			if !strings.Contains(got, want) {
				return false
			}
		default:
			return false
		}
	}
	return true
}
