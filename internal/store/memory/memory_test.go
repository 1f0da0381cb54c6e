package memory

import (
	"context"
	"testing"

	"sanse/backend/internal/domain"
	"sanse/backend/internal/store"
)

func TestSeededStoreHasRulesAndInventory(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	raw, found, err := s.GetConfigValue(ctx, "reglas_descuento_inventario")
	if err != nil || !found || raw == "" {
		t.Fatalf("expected seeded rules blob, got found=%t err=%v", found, err)
	}

	items, err := s.ListInventoryByTypes(ctx, []string{domain.TipoEsencia})
	if err != nil {
		t.Fatalf("list by types: %v", err)
	}
	if len(items) == 0 {
		t.Fatalf("expected seeded essences")
	}
	for i := 1; i < len(items); i++ {
		if items[i-1].ID > items[i].ID {
			t.Fatalf("expected id-sorted listing, got %s before %s", items[i-1].ID, items[i].ID)
		}
	}
}

func TestApplyStockDeltasReportsMissingAndNegative(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	results, err := s.ApplyStockDeltas(ctx, []domain.StockDelta{
		{InventoryID: "bot-60-01", Amount: 95},
		{InventoryID: "no-existe", Amount: 1},
	})
	if err != nil {
		t.Fatalf("apply deltas: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Found || results[0].NewQuantity != -5 {
		t.Fatalf("expected unclamped decrement to -5, got %+v", results[0])
	}
	if results[1].Found {
		t.Fatalf("expected missing target reported, got %+v", results[1])
	}

	item, err := s.GetInventoryItem(ctx, "bot-60-01")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.Cantidad != -5 {
		t.Fatalf("expected persisted -5, got %d", item.Cantidad)
	}
}

func TestCreateInventoryRejectsDuplicateID(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	_, err := s.CreateInventoryItem(ctx, domain.InventoryItem{
		ID: "bot-30-01", Nombre: "Duplicada", Tipo: domain.TipoBotella, Cantidad: 1,
	})
	if err != store.ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput for duplicate id, got %v", err)
	}
}
