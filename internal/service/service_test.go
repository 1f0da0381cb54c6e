package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"sanse/backend/internal/cache"
	"sanse/backend/internal/deduction"
	"sanse/backend/internal/domain"
	"sanse/backend/internal/store"
	"sanse/backend/internal/store/memory"
)

func newTestService() (*Service, *memory.Store) {
	repo := memory.NewSeeded()
	return New(repo, cache.NoopConfigCache{}, 0), repo
}

func adminContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func vendedorContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "vendedor", Role: domain.RoleVendedor})
}

func setRules(t *testing.T, repo *memory.Store, rules []deduction.Rule) {
	t.Helper()
	raw, err := json.Marshal(rules)
	if err != nil {
		t.Fatalf("marshal rules: %v", err)
	}
	if err := repo.SetConfigValue(context.Background(), deduction.ConfigKey, string(raw)); err != nil {
		t.Fatalf("set rules config: %v", err)
	}
}

func inventoryQuantity(t *testing.T, repo *memory.Store, id string) int {
	t.Helper()
	item, err := repo.GetInventoryItem(context.Background(), id)
	if err != nil {
		t.Fatalf("get inventory item %s: %v", id, err)
	}
	return item.Cantidad
}

func TestRegisterSaleRunsDeductions(t *testing.T) {
	svc, repo := newTestService()

	setRules(t, repo, []deduction.Rule{{
		ID:         "r1",
		Name:       "esencia por perfume",
		Conditions: []deduction.Condition{{Field: "genero", Operator: deduction.OpEquals, Value: "masculino"}},
		Deductions: []deduction.Deduction{
			{Type: deduction.DeductDynamicEssence, Quantity: 3},
			{Type: deduction.DeductFixed, InventarioID: "bot-30-01", Quantity: 1},
		},
	}})

	before := inventoryQuantity(t, repo, "ese-oud-01")

	resp, err := svc.RegisterSale(vendedorContext(), domain.SaleCreateRequest{
		TotalCents:    250000,
		PaymentMethod: "efectivo",
		Items: []domain.SaleLineItem{
			{PerfumeName: "Oud Intenso", Gender: "masculino", Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("register sale failed: %v", err)
	}
	if !resp.Deduction.Success {
		t.Fatalf("expected deduction success, got %+v", resp.Deduction)
	}
	if resp.Sale.Vendedor != "vendedor" {
		t.Fatalf("expected sale attributed to the actor, got %q", resp.Sale.Vendedor)
	}

	if got := inventoryQuantity(t, repo, "ese-oud-01"); got != before-6 {
		t.Fatalf("expected essence deducted by 6, got %d (was %d)", got, before)
	}
	if got := inventoryQuantity(t, repo, "bot-30-01"); got != 198 {
		t.Fatalf("expected 2 bottles deducted, got %d", got)
	}

	list, err := svc.ListSales(context.Background(), 10)
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}
	if len(list.Sales) != 1 {
		t.Fatalf("expected 1 recorded sale, got %d", len(list.Sales))
	}
}

func TestRegisterSaleWithoutRulesIsInformationalSuccess(t *testing.T) {
	svc, repo := newTestService()
	if err := repo.SetConfigValue(context.Background(), deduction.ConfigKey, ""); err != nil {
		t.Fatalf("clear rules: %v", err)
	}

	resp, err := svc.RegisterSale(vendedorContext(), domain.SaleCreateRequest{
		Items: []domain.SaleLineItem{{PerfumeName: "Lavanda", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("register sale failed: %v", err)
	}
	if !resp.Deduction.Success || resp.Deduction.Message == "" {
		t.Fatalf("expected informational success, got %+v", resp.Deduction)
	}
	if len(resp.Deduction.Logs) != 0 {
		t.Fatalf("expected no transcript entries, got %v", resp.Deduction.Logs)
	}
}

func TestRegisterSaleWithUnparseableRulesDoesNotTouchInventory(t *testing.T) {
	svc, repo := newTestService()
	if err := repo.SetConfigValue(context.Background(), deduction.ConfigKey, `{"rota":`); err != nil {
		t.Fatalf("set broken rules: %v", err)
	}

	before := inventoryQuantity(t, repo, "bot-30-01")

	resp, err := svc.RegisterSale(vendedorContext(), domain.SaleCreateRequest{
		Items: []domain.SaleLineItem{{PerfumeName: "Oud Intenso", BottleType: "30ml", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("the sale itself must not fail: %v", err)
	}
	if resp.Deduction.Success || resp.Deduction.Error == "" {
		t.Fatalf("expected a configuration error result, got %+v", resp.Deduction)
	}
	if got := inventoryQuantity(t, repo, "bot-30-01"); got != before {
		t.Fatalf("expected zero writes, quantity changed from %d to %d", before, got)
	}
}

func TestRegisterSaleRejectsEmptyItems(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.RegisterSale(vendedorContext(), domain.SaleCreateRequest{})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	_, err = svc.RegisterSale(vendedorContext(), domain.SaleCreateRequest{
		Items: []domain.SaleLineItem{{PerfumeName: "Oud", Quantity: 0}},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero quantity, got %v", err)
	}
}

func TestUpdateDeductionRulesReturnsLintWarnings(t *testing.T) {
	svc, _ := newTestService()

	raw := `[{"id":"r1","conditions":[{"field":"color_tapa","operator":"eq","value":"dorado"}],"deductions":[{"type":"fixed","inventario_id":"bot-30-01","quantity":1}]}]`
	resp, err := svc.UpdateDeductionRules(adminContext(), raw)
	if err != nil {
		t.Fatalf("update rules failed: %v", err)
	}
	if len(resp.Warnings) == 0 {
		t.Fatalf("expected lint warnings for the unknown field")
	}

	stored, err := svc.GetDeductionRules(context.Background())
	if err != nil {
		t.Fatalf("get rules failed: %v", err)
	}
	if stored.Raw != raw {
		t.Fatalf("expected stored blob to round-trip")
	}
}

func TestUpdateDeductionRulesRejectsMalformedBlob(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.UpdateDeductionRules(adminContext(), `no es json`); err == nil {
		t.Fatalf("expected malformed blob to be rejected")
	}
}

func TestUpdateDeductionRulesRequiresAdmin(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.UpdateDeductionRules(vendedorContext(), `[]`); err == nil {
		t.Fatalf("expected non-admin update to fail")
	}
}

func TestInventoryCreateRequiresAdmin(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateInventoryItem(vendedorContext(), domain.InventoryCreateRequest{
		Nombre: "Esencia Ambar", Tipo: domain.TipoEsencia, Cantidad: 100,
	})
	if err == nil {
		t.Fatalf("expected non-admin create to fail")
	}

	created, err := svc.CreateInventoryItem(adminContext(), domain.InventoryCreateRequest{
		Nombre: "Esencia Ambar", Tipo: domain.TipoEsencia, Cantidad: 100,
	})
	if err != nil {
		t.Fatalf("admin create failed: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}
}

func TestDebtLifecycle(t *testing.T) {
	svc, _ := newTestService()
	ctx := vendedorContext()

	debt, err := svc.CreateDebt(ctx, domain.DebtCreateRequest{
		Cliente:    "Cliente Habitual",
		MontoCents: 120000,
	})
	if err != nil {
		t.Fatalf("create debt failed: %v", err)
	}

	settled, err := svc.SettleDebt(ctx, debt.ID)
	if err != nil {
		t.Fatalf("settle debt failed: %v", err)
	}
	if !settled.Pagada || settled.PagadaAt == nil {
		t.Fatalf("expected debt marked as paid, got %+v", settled)
	}

	if _, err := svc.SettleDebt(ctx, debt.ID); err == nil {
		t.Fatalf("expected second settle to fail")
	}

	pending, err := svc.ListDebts(ctx, false)
	if err != nil {
		t.Fatalf("list debts failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending debts, got %d", len(pending))
	}
}

func TestNotesLifecycle(t *testing.T) {
	svc, _ := newTestService()
	ctx := vendedorContext()

	note, err := svc.CreateNote(ctx, domain.NoteCreateRequest{
		Titulo:    "Pedido pendiente",
		Contenido: "Llamar al proveedor de botellas",
	})
	if err != nil {
		t.Fatalf("create note failed: %v", err)
	}

	notes, err := svc.ListNotes(ctx)
	if err != nil {
		t.Fatalf("list notes failed: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(notes))
	}

	if err := svc.DeleteNote(ctx, note.ID); err != nil {
		t.Fatalf("delete note failed: %v", err)
	}
	if err := svc.DeleteNote(ctx, note.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for second delete, got %v", err)
	}
}

func TestActivityLogsRecordedAndRestricted(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.CreateSupplier(adminContext(), domain.SupplierCreateRequest{
		Nombre: "Esencias del Sur", Telefono: "1155550000",
	}); err != nil {
		t.Fatalf("create supplier failed: %v", err)
	}

	logs, err := svc.ListActivityLogs(adminContext(), 10)
	if err != nil {
		t.Fatalf("list activity logs failed: %v", err)
	}
	if len(logs) == 0 {
		t.Fatalf("expected activity entries")
	}
	if logs[0].ActorUsername != "admin" {
		t.Fatalf("expected actor recorded, got %q", logs[0].ActorUsername)
	}

	if _, err := svc.ListActivityLogs(vendedorContext(), 10); err == nil {
		t.Fatalf("expected non-admin activity listing to fail")
	}
}
