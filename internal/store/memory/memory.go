package memory

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"sanse/backend/internal/domain"
	"sanse/backend/internal/store"
	"sanse/backend/internal/xid"
)

type Store struct {
	mu          sync.RWMutex
	inventory   map[string]domain.InventoryItem
	config      map[string]string
	salesByID   map[string]domain.Sale
	saleOrder   []string
	suppliers   map[string]domain.Supplier
	debtsByID   map[string]domain.Debt
	notesByID   map[string]domain.Note
	activityLog []domain.ActivityLog
	users       map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_VENDEDOR_PASSWORD; if
// unset, hardcoded dev defaults are used with a warning. The in-memory store
// is never used when DATABASE_URL is set.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	vendedorPwd := envOr("SEED_VENDEDOR_PASSWORD", "vendedor123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_VENDEDOR_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_VENDEDOR_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"vendedor", vendedorPwd, domain.RoleVendedor},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	items := []domain.InventoryItem{
		{ID: "ese-oud-01", Nombre: "Esencia Oud Intenso", Tipo: domain.TipoEsencia, Cantidad: 480},
		{ID: "ese-lav-01", Nombre: "Esencia Lavanda", Tipo: domain.TipoEsencia, Cantidad: 350},
		{ID: "ese-van-01", Nombre: "Esencia Vainilla", Tipo: domain.TipoEsencia, Cantidad: 220},
		{ID: "eti-oud-01", Nombre: "Etiqueta Oud Intenso", Tipo: domain.TipoEtiqueta, Cantidad: 140},
		{ID: "eti-lav-01", Nombre: "Etiqueta Lavanda", Tipo: domain.TipoEtiqueta, Cantidad: 120},
		{ID: "bot-30-01", Nombre: "Botella 30ml", Tipo: domain.TipoBotella, Cantidad: 200},
		{ID: "bot-60-01", Nombre: "Botella 60ml", Tipo: domain.TipoBotella, Cantidad: 90},
		{ID: "caja-std-01", Nombre: "Caja estandar", Tipo: domain.TipoOtro, Cantidad: 160},
	}

	inventory := make(map[string]domain.InventoryItem, len(items))
	for _, item := range items {
		inventory[item.ID] = item
	}

	return &Store{
		inventory:   inventory,
		config:      map[string]string{"reglas_descuento_inventario": seedRules()},
		salesByID:   make(map[string]domain.Sale),
		suppliers:   make(map[string]domain.Supplier),
		debtsByID:   make(map[string]domain.Debt),
		notesByID:   make(map[string]domain.Note),
		activityLog: make([]domain.ActivityLog, 0, 128),
		users:       seedUsers(),
	}
}

// seedRules returns a small default rule set so the dev register screen
// exercises the full deduction pipeline out of the box.
func seedRules() string {
	rules := []map[string]any{
		{
			"id":   "regla-envase-30",
			"name": "Botella 30ml por venta",
			"conditions": []map[string]string{
				{"field": "botella", "operator": "eq", "value": "30ml"},
				{"field": "devolvio_envase", "operator": "eq", "value": "No"},
			},
			"deductions": []map[string]any{
				{"type": "fixed", "inventario_id": "bot-30-01", "quantity": 1},
			},
		},
		{
			"id":   "regla-esencia",
			"name": "Esencia y etiqueta por nombre",
			"conditions": []map[string]string{
				{"field": "categoria", "operator": "contains", "value": "perfume"},
			},
			"deductions": []map[string]any{
				{"type": "dynamic_essence", "quantity": 3},
				{"type": "dynamic_label", "quantity": 1},
			},
		},
	}
	raw, err := json.Marshal(rules)
	if err != nil {
		log.Fatalf("[memory-store] failed to marshal seed rules: %v", err)
	}
	return string(raw)
}

func (s *Store) ListInventory(_ context.Context) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.InventoryItem, 0, len(s.inventory))
	for _, item := range s.inventory {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.InventoryItem) int {
		if a.Tipo == b.Tipo {
			return strings.Compare(a.Nombre, b.Nombre)
		}
		return strings.Compare(a.Tipo, b.Tipo)
	})
	return items, nil
}

func (s *Store) GetInventoryItem(_ context.Context, id string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.inventory[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := item
	return &found, nil
}

func (s *Store) CreateInventoryItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.Nombre == "" || item.Tipo == "" {
		return nil, store.ErrInvalidInput
	}
	if item.ID == "" {
		item.ID = xid.New("inv")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.inventory[item.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	s.inventory[item.ID] = item
	created := item
	return &created, nil
}

func (s *Store) UpdateInventoryItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.ID == "" || item.Nombre == "" || item.Tipo == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.inventory[item.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.inventory[item.ID] = item
	updated := item
	return &updated, nil
}

func (s *Store) ListInventoryByTypes(_ context.Context, types []string) ([]domain.InventoryItem, error) {
	wanted := make(map[string]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.InventoryItem, 0, len(s.inventory))
	for _, item := range s.inventory {
		if wanted[item.Tipo] {
			items = append(items, item)
		}
	}
	slices.SortFunc(items, func(a, b domain.InventoryItem) int {
		return strings.Compare(a.ID, b.ID)
	})
	return items, nil
}

// ApplyStockDeltas applies every delta under one lock so a sale's deductions
// land together. Missing targets are reported, not fatal. Decrements are
// unclamped; stock may go negative.
func (s *Store) ApplyStockDeltas(_ context.Context, deltas []domain.StockDelta) ([]domain.StockDeltaResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]domain.StockDeltaResult, 0, len(deltas))
	for _, delta := range deltas {
		item, exists := s.inventory[delta.InventoryID]
		if !exists {
			results = append(results, domain.StockDeltaResult{InventoryID: delta.InventoryID})
			continue
		}
		item.Cantidad -= delta.Amount
		s.inventory[delta.InventoryID] = item
		results = append(results, domain.StockDeltaResult{
			InventoryID: delta.InventoryID,
			Found:       true,
			Applied:     delta.Amount,
			NewQuantity: item.Cantidad,
		})
	}
	return results, nil
}

func (s *Store) GetConfigValue(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.config[key]
	return value, exists, nil
}

func (s *Store) SetConfigValue(_ context.Context, key string, value string) error {
	if key == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.config[key] = value
	return nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salesByID[sale.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	s.salesByID[sale.ID] = sale
	s.saleOrder = append(s.saleOrder, sale.ID)
	created := sale
	return &created, nil
}

func (s *Store) ListSales(_ context.Context, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, limit)
	for i := len(s.saleOrder) - 1; i >= 0 && len(sales) < limit; i-- {
		sales = append(sales, s.salesByID[s.saleOrder[i]])
	}
	return sales, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.Nombre == "" {
		return nil, store.ErrInvalidInput
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("prov")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.suppliers[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliers))
	for _, supplier := range s.suppliers {
		suppliers = append(suppliers, supplier)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return strings.Compare(a.Nombre, b.Nombre)
	})
	return suppliers, nil
}

func (s *Store) DeleteSupplier(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.suppliers[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.suppliers, id)
	return nil
}

func (s *Store) CreateDebt(_ context.Context, debt domain.Debt) (*domain.Debt, error) {
	if debt.Cliente == "" || debt.MontoCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if debt.ID == "" {
		debt.ID = xid.New("deuda")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.debtsByID[debt.ID] = debt
	created := debt
	return &created, nil
}

func (s *Store) ListDebts(_ context.Context, includeSettled bool) ([]domain.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	debts := make([]domain.Debt, 0, len(s.debtsByID))
	for _, debt := range s.debtsByID {
		if !includeSettled && debt.Pagada {
			continue
		}
		debts = append(debts, debt)
	}
	slices.SortFunc(debts, func(a, b domain.Debt) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return debts, nil
}

func (s *Store) SettleDebt(_ context.Context, id string) (*domain.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	debt, exists := s.debtsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if debt.Pagada {
		return nil, store.ErrInvalidInput
	}
	now := time.Now().UTC()
	debt.Pagada = true
	debt.PagadaAt = &now
	s.debtsByID[id] = debt
	settled := debt
	return &settled, nil
}

func (s *Store) CreateNote(_ context.Context, note domain.Note) (*domain.Note, error) {
	if note.Titulo == "" && note.Contenido == "" {
		return nil, store.ErrInvalidInput
	}
	if note.ID == "" {
		note.ID = xid.New("nota")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.notesByID[note.ID] = note
	created := note
	return &created, nil
}

func (s *Store) ListNotes(_ context.Context) ([]domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notes := make([]domain.Note, 0, len(s.notesByID))
	for _, note := range s.notesByID {
		notes = append(notes, note)
	}
	slices.SortFunc(notes, func(a, b domain.Note) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return notes, nil
}

func (s *Store) DeleteNote(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.notesByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.notesByID, id)
	return nil
}

func (s *Store) CreateActivityLog(_ context.Context, entry domain.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activityLog = append(s.activityLog, entry)
	return nil
}

func (s *Store) ListActivityLogs(_ context.Context, limit int) ([]domain.ActivityLog, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.ActivityLog, 0, limit)
	for i := len(s.activityLog) - 1; i >= 0 && len(logs) < limit; i-- {
		logs = append(logs, s.activityLog[i])
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return store.ErrInvalidInput
	}
	s.users[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.users[username] = user
	return nil
}
