package store

import (
	"context"
	"errors"

	"sanse/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

type Repository interface {
	ListInventory(ctx context.Context) ([]domain.InventoryItem, error)
	GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error)
	CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	UpdateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	ListInventoryByTypes(ctx context.Context, types []string) ([]domain.InventoryItem, error)
	ApplyStockDeltas(ctx context.Context, deltas []domain.StockDelta) ([]domain.StockDeltaResult, error)

	GetConfigValue(ctx context.Context, key string) (string, bool, error)
	SetConfigValue(ctx context.Context, key string, value string) error

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	ListSales(ctx context.Context, limit int) ([]domain.Sale, error)

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	DeleteSupplier(ctx context.Context, id string) error

	CreateDebt(ctx context.Context, debt domain.Debt) (*domain.Debt, error)
	ListDebts(ctx context.Context, includeSettled bool) ([]domain.Debt, error)
	SettleDebt(ctx context.Context, id string) (*domain.Debt, error)

	CreateNote(ctx context.Context, note domain.Note) (*domain.Note, error)
	ListNotes(ctx context.Context) ([]domain.Note, error)
	DeleteNote(ctx context.Context, id string) error

	CreateActivityLog(ctx context.Context, entry domain.ActivityLog) error
	ListActivityLogs(ctx context.Context, limit int) ([]domain.ActivityLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
