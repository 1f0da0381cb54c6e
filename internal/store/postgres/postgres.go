package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"sanse/backend/internal/domain"
	"sanse/backend/internal/store"
	"sanse/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(20)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) ListInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nombre, tipo, cantidad
		FROM inventario
		ORDER BY tipo, nombre
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, 64)
	for rows.Next() {
		var item domain.InventoryItem
		if err := rows.Scan(&item.ID, &item.Nombre, &item.Tipo, &item.Cantidad); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := s.db.QueryRowContext(ctx, `
		SELECT id, nombre, tipo, cantidad
		FROM inventario
		WHERE id = $1
	`, id).Scan(&item.ID, &item.Nombre, &item.Tipo, &item.Cantidad)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.Nombre == "" || item.Tipo == "" {
		return nil, store.ErrInvalidInput
	}
	if item.ID == "" {
		item.ID = xid.New("inv")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventario (id, nombre, tipo, cantidad, created_at, updated_at)
		VALUES ($1,$2,$3,$4,now(),now())
	`, item.ID, item.Nombre, item.Tipo, item.Cantidad)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	created := item
	return &created, nil
}

func (s *Store) UpdateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.ID == "" || item.Nombre == "" || item.Tipo == "" {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE inventario
		SET nombre = $2, tipo = $3, cantidad = $4, updated_at = now()
		WHERE id = $1
	`, item.ID, item.Nombre, item.Tipo, item.Cantidad)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := item
	return &updated, nil
}

func (s *Store) ListInventoryByTypes(ctx context.Context, types []string) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nombre, tipo, cantidad
		FROM inventario
		WHERE tipo = ANY($1)
		ORDER BY id
	`, types)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, 64)
	for rows.Next() {
		var item domain.InventoryItem
		if err := rows.Scan(&item.ID, &item.Nombre, &item.Tipo, &item.Cantidad); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ApplyStockDeltas runs every decrement of one sale inside a single
// transaction with atomic in-database arithmetic, so concurrent sales cannot
// lose updates and a write failure rolls the whole batch back. A missing
// target id is reported in the result and does not abort the batch.
func (s *Store) ApplyStockDeltas(ctx context.Context, deltas []domain.StockDelta) ([]domain.StockDeltaResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	results := make([]domain.StockDeltaResult, 0, len(deltas))
	for _, delta := range deltas {
		var newQuantity int
		err := tx.QueryRowContext(ctx, `
			UPDATE inventario
			SET cantidad = cantidad - $2, updated_at = now()
			WHERE id = $1
			RETURNING cantidad
		`, delta.InventoryID, delta.Amount).Scan(&newQuantity)
		if errors.Is(err, sql.ErrNoRows) {
			results = append(results, domain.StockDeltaResult{InventoryID: delta.InventoryID})
			continue
		}
		if err != nil {
			return nil, err
		}
		results = append(results, domain.StockDeltaResult{
			InventoryID: delta.InventoryID,
			Found:       true,
			Applied:     delta.Amount,
			NewQuantity: newQuantity,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) GetConfigValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT valor FROM configuracion WHERE clave = $1
	`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) SetConfigValue(ctx context.Context, key string, value string) error {
	if key == "" {
		return store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO configuracion (clave, valor, updated_at)
		VALUES ($1,$2,now())
		ON CONFLICT (clave) DO UPDATE SET valor = EXCLUDED.valor, updated_at = now()
	`, key, value)
	return err
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	itemsJSON, err := json.Marshal(sale.Items)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ventas (id, items, total_cents, metodo_pago, vendedor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, sale.ID, itemsJSON, sale.TotalCents, sale.PaymentMethod, sale.Vendedor, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	created := sale
	return &created, nil
}

func (s *Store) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, items, total_cents, metodo_pago, vendedor, created_at
		FROM ventas
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	for rows.Next() {
		var sale domain.Sale
		var itemsJSON []byte
		if err := rows.Scan(&sale.ID, &itemsJSON, &sale.TotalCents, &sale.PaymentMethod, &sale.Vendedor, &sale.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(itemsJSON, &sale.Items); err != nil {
			return nil, err
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.Nombre == "" {
		return nil, store.ErrInvalidInput
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("prov")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO proveedores (id, nombre, telefono, email, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, supplier.ID, supplier.Nombre, supplier.Telefono, supplier.Email, supplier.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := supplier
	return &created, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nombre, telefono, email, created_at
		FROM proveedores
		ORDER BY nombre
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var supplier domain.Supplier
		if err := rows.Scan(&supplier.ID, &supplier.Nombre, &supplier.Telefono, &supplier.Email, &supplier.CreatedAt); err != nil {
			return nil, err
		}
		supplier.CreatedAt = supplier.CreatedAt.UTC()
		suppliers = append(suppliers, supplier)
	}
	return suppliers, rows.Err()
}

func (s *Store) DeleteSupplier(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM proveedores WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateDebt(ctx context.Context, debt domain.Debt) (*domain.Debt, error) {
	if debt.Cliente == "" || debt.MontoCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if debt.ID == "" {
		debt.ID = xid.New("deuda")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deudas (id, cliente, monto_cents, descripcion, pagada, created_at)
		VALUES ($1,$2,$3,$4,false,$5)
	`, debt.ID, debt.Cliente, debt.MontoCents, debt.Descripcion, debt.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := debt
	return &created, nil
}

func (s *Store) ListDebts(ctx context.Context, includeSettled bool) ([]domain.Debt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cliente, monto_cents, descripcion, pagada, created_at, pagada_at
		FROM deudas
		WHERE pagada = false OR $1
		ORDER BY created_at DESC
	`, includeSettled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	debts := make([]domain.Debt, 0, 32)
	for rows.Next() {
		var debt domain.Debt
		if err := rows.Scan(&debt.ID, &debt.Cliente, &debt.MontoCents, &debt.Descripcion, &debt.Pagada, &debt.CreatedAt, &debt.PagadaAt); err != nil {
			return nil, err
		}
		debt.CreatedAt = debt.CreatedAt.UTC()
		debts = append(debts, debt)
	}
	return debts, rows.Err()
}

func (s *Store) SettleDebt(ctx context.Context, id string) (*domain.Debt, error) {
	var debt domain.Debt
	err := s.db.QueryRowContext(ctx, `
		UPDATE deudas
		SET pagada = true, pagada_at = now()
		WHERE id = $1 AND pagada = false
		RETURNING id, cliente, monto_cents, descripcion, pagada, created_at, pagada_at
	`, id).Scan(&debt.ID, &debt.Cliente, &debt.MontoCents, &debt.Descripcion, &debt.Pagada, &debt.CreatedAt, &debt.PagadaAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Distinguish a missing debt from one already settled.
			var pagada bool
			existsErr := s.db.QueryRowContext(ctx, `SELECT pagada FROM deudas WHERE id = $1`, id).Scan(&pagada)
			if existsErr == nil && pagada {
				return nil, store.ErrInvalidInput
			}
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &debt, nil
}

func (s *Store) CreateNote(ctx context.Context, note domain.Note) (*domain.Note, error) {
	if note.Titulo == "" && note.Contenido == "" {
		return nil, store.ErrInvalidInput
	}
	if note.ID == "" {
		note.ID = xid.New("nota")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notas (id, titulo, contenido, created_at)
		VALUES ($1,$2,$3,$4)
	`, note.ID, note.Titulo, note.Contenido, note.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := note
	return &created, nil
}

func (s *Store) ListNotes(ctx context.Context) ([]domain.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, titulo, contenido, created_at
		FROM notas
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]domain.Note, 0, 32)
	for rows.Next() {
		var note domain.Note
		if err := rows.Scan(&note.ID, &note.Titulo, &note.Contenido, &note.CreatedAt); err != nil {
			return nil, err
		}
		note.CreatedAt = note.CreatedAt.UTC()
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

func (s *Store) DeleteNote(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notas WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateActivityLog(ctx context.Context, entry domain.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("act")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actividad (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListActivityLogs(ctx context.Context, limit int) ([]domain.ActivityLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM actividad
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.ActivityLog, 0, limit)
	for rows.Next() {
		var entry domain.ActivityLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usuarios (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM usuarios
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE usuarios SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
