package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"sanse/backend/internal/cache"
	"sanse/backend/internal/deduction"
	"sanse/backend/internal/domain"
	"sanse/backend/internal/store"
	"sanse/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo        store.Repository
	engine      *deduction.Engine
	configCache cache.ConfigCache
	cacheTTL    time.Duration
}

func New(repo store.Repository, configCache cache.ConfigCache, cacheTTL time.Duration) *Service {
	if configCache == nil {
		configCache = cache.NoopConfigCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}

	return &Service{
		repo:        repo,
		engine:      deduction.NewEngine(repo),
		configCache: configCache,
		cacheTTL:    cacheTTL,
	}
}

func (s *Service) ListInventory(ctx context.Context) (domain.InventoryListResponse, error) {
	items, err := s.repo.ListInventory(ctx)
	if err != nil {
		return domain.InventoryListResponse{}, err
	}
	return domain.InventoryListResponse{Items: items}, nil
}

func (s *Service) CreateInventoryItem(ctx context.Context, req domain.InventoryCreateRequest) (domain.InventoryItem, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.InventoryItem{}, fmt.Errorf("se requiere rol admin")
	}

	req.Nombre = strings.TrimSpace(req.Nombre)
	req.Tipo = strings.TrimSpace(req.Tipo)
	if req.Nombre == "" || req.Tipo == "" || req.Cantidad < 0 {
		return domain.InventoryItem{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateInventoryItem(ctx, domain.InventoryItem{
		ID:       xid.New("inv"),
		Nombre:   req.Nombre,
		Tipo:     req.Tipo,
		Cantidad: req.Cantidad,
	})
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.logActivity(ctx, "inventario_crear", "inventario", created.ID, fmt.Sprintf("nombre=%s,tipo=%s,cantidad=%d", created.Nombre, created.Tipo, created.Cantidad))
	return *created, nil
}

func (s *Service) UpdateInventoryItem(ctx context.Context, id string, req domain.InventoryUpdateRequest) (domain.InventoryItem, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.InventoryItem{}, fmt.Errorf("se requiere rol admin")
	}
	if id == "" {
		return domain.InventoryItem{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetInventoryItem(ctx, id)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	updated := *existing
	if req.Nombre != nil {
		nombre := strings.TrimSpace(*req.Nombre)
		if nombre == "" {
			return domain.InventoryItem{}, store.ErrInvalidInput
		}
		updated.Nombre = nombre
	}
	if req.Tipo != nil {
		tipo := strings.TrimSpace(*req.Tipo)
		if tipo == "" {
			return domain.InventoryItem{}, store.ErrInvalidInput
		}
		updated.Tipo = tipo
	}
	if req.Cantidad != nil {
		updated.Cantidad = *req.Cantidad
	}

	saved, err := s.repo.UpdateInventoryItem(ctx, updated)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.logActivity(ctx, "inventario_actualizar", "inventario", saved.ID, fmt.Sprintf("cantidad=%d", saved.Cantidad))
	return *saved, nil
}

// RegisterSale records a completed sale and then runs the deduction engine
// over its line items. Deduction anomalies never block the sale: everything
// except a repository failure on the sale record itself is absorbed into the
// returned transcript for the operator to reconcile.
func (s *Service) RegisterSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleResponse, error) {
	if len(req.Items) == 0 {
		return domain.SaleResponse{}, store.ErrInvalidInput
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.PerfumeName) == "" || item.Quantity < 1 {
			return domain.SaleResponse{}, store.ErrInvalidInput
		}
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = "efectivo"
	}

	vendedor := ""
	if actor, ok := ActorFromContext(ctx); ok {
		vendedor = actor.Username
	}

	sale := domain.Sale{
		ID:            xid.New("venta"),
		Items:         req.Items,
		TotalCents:    req.TotalCents,
		PaymentMethod: req.PaymentMethod,
		Vendedor:      vendedor,
		CreatedAt:     time.Now().UTC(),
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	result := s.runDeductions(ctx, created.Items)
	if result.Error != "" {
		log.Printf("[service] WARN: deduccion de inventario fallo para venta %s: %s", created.ID, result.Error)
	}

	s.logActivity(ctx, "venta_registrar", "venta", created.ID, fmt.Sprintf("items=%d,total=%d,descuento_ok=%t", len(created.Items), created.TotalCents, result.Success))

	return domain.SaleResponse{Sale: *created, Deduction: result}, nil
}

// runDeductions loads the rule configuration (through the cache), parses it,
// and hands the sale's items to the engine. An absent configuration is an
// explicit success; an unparseable one aborts before any catalog write.
func (s *Service) runDeductions(ctx context.Context, items []domain.SaleLineItem) domain.DeductionResult {
	raw, found, err := s.loadRulesRaw(ctx)
	if err != nil {
		return domain.DeductionResult{Error: fmt.Sprintf("no se pudo cargar la configuracion de reglas: %v", err)}
	}
	if !found || strings.TrimSpace(raw) == "" {
		return domain.DeductionResult{Success: true, Message: "no hay reglas de descuento configuradas"}
	}

	rules, err := deduction.ParseRules(raw)
	if err != nil {
		return domain.DeductionResult{Error: err.Error()}
	}

	return s.engine.ProcessSale(ctx, rules, items)
}

func (s *Service) loadRulesRaw(ctx context.Context) (string, bool, error) {
	if cached, ok, err := s.configCache.Get(ctx, deduction.ConfigKey); err == nil && ok {
		return cached, true, nil
	}

	raw, found, err := s.repo.GetConfigValue(ctx, deduction.ConfigKey)
	if err != nil || !found {
		return "", found, err
	}

	if err := s.configCache.Set(ctx, deduction.ConfigKey, raw, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: no se pudo cachear la configuracion de reglas: %v", err)
	}
	return raw, true, nil
}

func (s *Service) ListSales(ctx context.Context, limit int) (domain.SaleListResponse, error) {
	sales, err := s.repo.ListSales(ctx, limit)
	if err != nil {
		return domain.SaleListResponse{}, err
	}
	return domain.SaleListResponse{Sales: sales}, nil
}

// GetDeductionRules returns the raw serialized rule list as the rule editor
// stored it, plus current lint warnings when it parses.
func (s *Service) GetDeductionRules(ctx context.Context) (domain.RulesConfigResponse, error) {
	raw, found, err := s.repo.GetConfigValue(ctx, deduction.ConfigKey)
	if err != nil {
		return domain.RulesConfigResponse{}, err
	}
	if !found {
		return domain.RulesConfigResponse{Raw: "[]"}, nil
	}

	resp := domain.RulesConfigResponse{Raw: raw}
	if rules, err := deduction.ParseRules(raw); err == nil {
		resp.Warnings = deduction.LintRules(rules)
	}
	return resp, nil
}

// UpdateDeductionRules persists a new rule blob. The blob must parse; lint
// findings are returned as warnings but do not block the save, so the rule
// editor can surface them at authoring time instead of the rules failing
// silently at every sale.
func (s *Service) UpdateDeductionRules(ctx context.Context, raw string) (domain.RulesConfigResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.RulesConfigResponse{}, fmt.Errorf("se requiere rol admin")
	}

	rules, err := deduction.ParseRules(raw)
	if err != nil {
		return domain.RulesConfigResponse{}, err
	}
	warnings := deduction.LintRules(rules)

	if err := s.repo.SetConfigValue(ctx, deduction.ConfigKey, raw); err != nil {
		return domain.RulesConfigResponse{}, err
	}
	if err := s.configCache.Invalidate(ctx, deduction.ConfigKey); err != nil {
		log.Printf("[service] WARN: no se pudo invalidar el cache de reglas: %v", err)
	}

	s.logActivity(ctx, "reglas_actualizar", "configuracion", deduction.ConfigKey, fmt.Sprintf("reglas=%d,advertencias=%d", len(rules), len(warnings)))

	return domain.RulesConfigResponse{Raw: raw, Warnings: warnings}, nil
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	req.Nombre = strings.TrimSpace(req.Nombre)
	if req.Nombre == "" {
		return domain.Supplier{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		ID:        xid.New("prov"),
		Nombre:    req.Nombre,
		Telefono:  strings.TrimSpace(req.Telefono),
		Email:     strings.TrimSpace(req.Email),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Supplier{}, err
	}

	s.logActivity(ctx, "proveedor_crear", "proveedor", created.ID, created.Nombre)
	return *created, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("se requiere rol admin")
	}
	if err := s.repo.DeleteSupplier(ctx, id); err != nil {
		return err
	}
	s.logActivity(ctx, "proveedor_eliminar", "proveedor", id, "")
	return nil
}

func (s *Service) CreateDebt(ctx context.Context, req domain.DebtCreateRequest) (domain.Debt, error) {
	req.Cliente = strings.TrimSpace(req.Cliente)
	if req.Cliente == "" || req.MontoCents < 1 {
		return domain.Debt{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateDebt(ctx, domain.Debt{
		ID:          xid.New("deuda"),
		Cliente:     req.Cliente,
		MontoCents:  req.MontoCents,
		Descripcion: strings.TrimSpace(req.Descripcion),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return domain.Debt{}, err
	}

	s.logActivity(ctx, "deuda_crear", "deuda", created.ID, fmt.Sprintf("cliente=%s,monto=%d", created.Cliente, created.MontoCents))
	return *created, nil
}

func (s *Service) ListDebts(ctx context.Context, includeSettled bool) ([]domain.Debt, error) {
	return s.repo.ListDebts(ctx, includeSettled)
}

func (s *Service) SettleDebt(ctx context.Context, id string) (domain.Debt, error) {
	if id == "" {
		return domain.Debt{}, store.ErrInvalidInput
	}

	settled, err := s.repo.SettleDebt(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrInvalidInput) {
			return domain.Debt{}, fmt.Errorf("%w: la deuda ya esta pagada", store.ErrInvalidInput)
		}
		return domain.Debt{}, err
	}

	s.logActivity(ctx, "deuda_pagar", "deuda", settled.ID, fmt.Sprintf("monto=%d", settled.MontoCents))
	return *settled, nil
}

func (s *Service) CreateNote(ctx context.Context, req domain.NoteCreateRequest) (domain.Note, error) {
	req.Titulo = strings.TrimSpace(req.Titulo)
	req.Contenido = strings.TrimSpace(req.Contenido)
	if req.Titulo == "" && req.Contenido == "" {
		return domain.Note{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateNote(ctx, domain.Note{
		ID:        xid.New("nota"),
		Titulo:    req.Titulo,
		Contenido: req.Contenido,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Note{}, err
	}
	return *created, nil
}

func (s *Service) ListNotes(ctx context.Context) ([]domain.Note, error) {
	return s.repo.ListNotes(ctx)
}

func (s *Service) DeleteNote(ctx context.Context, id string) error {
	return s.repo.DeleteNote(ctx, id)
}

func (s *Service) ListActivityLogs(ctx context.Context, limit int) ([]domain.ActivityLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("se requiere rol admin")
	}
	return s.repo.ListActivityLogs(ctx, limit)
}

func (s *Service) logActivity(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, _ := ActorFromContext(ctx)

	err := s.repo.CreateActivityLog(ctx, domain.ActivityLog{
		ID:            xid.New("act"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[service] WARN: failed to write activity log action=%s: %v", action, err)
	}
}
