package domain

import "time"

// Inventory record types. Dynamic deduction resolution only ever searches
// Esencia and Etiqueta records; any other tipo is a fixed-target-only record.
const (
	TipoEsencia  = "Esencia"
	TipoEtiqueta = "Etiqueta"
	TipoBotella  = "Botella"
	TipoOtro     = "Otro"
)

type InventoryItem struct {
	ID       string `json:"id"`
	Nombre   string `json:"nombre"`
	Tipo     string `json:"tipo"`
	Cantidad int    `json:"cantidad"`
}

type InventoryCreateRequest struct {
	Nombre   string `json:"nombre"`
	Tipo     string `json:"tipo"`
	Cantidad int    `json:"cantidad"`
}

type InventoryUpdateRequest struct {
	Nombre   *string `json:"nombre,omitempty"`
	Tipo     *string `json:"tipo,omitempty"`
	Cantidad *int    `json:"cantidad,omitempty"`
}

type InventoryListResponse struct {
	Items []InventoryItem `json:"items"`
}

// SaleLineItem is one distinct product entry within a completed sale, already
// quantity-aggregated by the register screen. Attributes carries any dynamic
// per-product fields the rule editor references beyond the fixed legacy set.
type SaleLineItem struct {
	PerfumeName    string            `json:"nombre"`
	Gender         string            `json:"genero"`
	Quantity       int               `json:"cantidad"`
	Category       string            `json:"categoria,omitempty"`
	Provider       string            `json:"proveedor,omitempty"`
	BottleType     string            `json:"botella,omitempty"`
	ReturnedBottle bool              `json:"devolvio_envase,omitempty"`
	Attributes     map[string]string `json:"atributos,omitempty"`
}

type Sale struct {
	ID            string         `json:"id"`
	Items         []SaleLineItem `json:"items"`
	TotalCents    int64          `json:"total_cents"`
	PaymentMethod string         `json:"metodo_pago"`
	Vendedor      string         `json:"vendedor"`
	CreatedAt     time.Time      `json:"created_at"`
}

type SaleCreateRequest struct {
	Items         []SaleLineItem `json:"items"`
	TotalCents    int64          `json:"total_cents"`
	PaymentMethod string         `json:"metodo_pago"`
}

// DeductionResult is the transcript of one engine run over a completed sale.
// Error is set only when the rule configuration could not be parsed or the
// engine could not reach the inventory catalog; every other anomaly is
// absorbed into Logs so a partially-successful run still reports success.
type DeductionResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
	Logs    []string `json:"logs,omitempty"`
}

type SaleResponse struct {
	Sale      Sale            `json:"venta"`
	Deduction DeductionResult `json:"descuento_inventario"`
}

type SaleListResponse struct {
	Sales []Sale `json:"ventas"`
}

// StockDelta is one pending decrement against an inventory record.
type StockDelta struct {
	InventoryID string
	Amount      int
}

// StockDeltaResult reports the outcome of one applied delta. Found is false
// when the target id no longer exists in the catalog; the remaining deltas of
// the batch are still applied.
type StockDeltaResult struct {
	InventoryID string
	Found       bool
	Applied     int
	NewQuantity int
}

type Supplier struct {
	ID        string    `json:"id"`
	Nombre    string    `json:"nombre"`
	Telefono  string    `json:"telefono"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Nombre   string `json:"nombre"`
	Telefono string `json:"telefono"`
	Email    string `json:"email"`
}

type Debt struct {
	ID          string     `json:"id"`
	Cliente     string     `json:"cliente"`
	MontoCents  int64      `json:"monto_cents"`
	Descripcion string     `json:"descripcion,omitempty"`
	Pagada      bool       `json:"pagada"`
	CreatedAt   time.Time  `json:"created_at"`
	PagadaAt    *time.Time `json:"pagada_at,omitempty"`
}

type DebtCreateRequest struct {
	Cliente     string `json:"cliente"`
	MontoCents  int64  `json:"monto_cents"`
	Descripcion string `json:"descripcion"`
}

type Note struct {
	ID        string    `json:"id"`
	Titulo    string    `json:"titulo"`
	Contenido string    `json:"contenido"`
	CreatedAt time.Time `json:"created_at"`
}

type NoteCreateRequest struct {
	Titulo    string `json:"titulo"`
	Contenido string `json:"contenido"`
}

type ActivityLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type RulesConfigResponse struct {
	Raw      string   `json:"raw"`
	Warnings []string `json:"warnings,omitempty"`
}

type RulesConfigUpdateRequest struct {
	Raw string `json:"raw"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type VendedorCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type VendedorUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	RoleAdmin    = "admin"
	RoleVendedor = "vendedor"
)
