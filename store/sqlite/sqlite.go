/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements all persistence interfaces (execution.Store, execution.TxStore,
  report.Store, catalog.Store) plus the order/service/user collaborator
  tables using SQLite. In production the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

WRITE-ONCE ENFORCEMENT:
  Execution records are opened by INSERT and closed by a single UPDATE
  guarded with "hora_fim IS NULL". A second close matches zero rows and
  surfaces execution.ErrNoOpenRecord. No DELETE exists for executions.

KEY TABLES:
  orders          Customer production orders (pedidos)
  services        Billable units of work, with the cached status projection
  executions      The append-only execution ledger
  users           Operators (external auth collaborator), for report joins
  catalog_items   Service catalog templates

INDEXES:
  - idx_executions_open: partial UNIQUE index enforcing at most one open
    record per (service, operator) - the core concurrency invariant lives
    in the schema, not just in code
  - idx_executions_user_start: report window scans (hot path)

CONCURRENCY:
  Uses sync.Mutex to serialize writers plus WAL mode so readers never
  block. WithTx holds the lock for the whole transaction: every state
  machine transition is one writer critical section.

USAGE:
  store, err := sqlite.New("./data/producao.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  machine := execution.NewMachine(store)

SEE ALSO:
  - execution/store.go: Interface definitions
  - execution/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/production-engine/catalog"
	"github.com/warp/production-engine/execution"
	"github.com/warp/production-engine/report"
)

// ErrDuplicateOrderNumber is returned when an order number already exists.
var ErrDuplicateOrderNumber = errors.New("order number already exists")

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: the store serializes writers anyway, and :memory:
	// databases are per-connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Operators (external auth collaborator; persisted for report joins)
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		nome TEXT NOT NULL,
		email TEXT UNIQUE,
		funcoes_json TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL
	);

	-- Orders (pedidos)
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		numero_pedido TEXT NOT NULL UNIQUE,
		cliente TEXT NOT NULL,
		data_criacao TEXT NOT NULL
	);

	-- Service catalog
	CREATE TABLE IF NOT EXISTS catalog_items (
		id TEXT PRIMARY KEY,
		nome TEXT NOT NULL UNIQUE,
		funcao TEXT NOT NULL,
		preco_padrao TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Services (serviços); status is a cached projection of the ledger
	CREATE TABLE IF NOT EXISTS services (
		id TEXT PRIMARY KEY,
		pedido_id TEXT NOT NULL REFERENCES orders(id),
		catalogo_id TEXT REFERENCES catalog_items(id),
		tipo_servico TEXT NOT NULL,
		quantidade INTEGER NOT NULL,
		preco_unitario TEXT NOT NULL DEFAULT '0',
		observacoes TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_services_order
		ON services(pedido_id);

	-- Execution ledger (execuções): append + write-once close, no deletes
	CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		servico_id TEXT NOT NULL REFERENCES services(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		hora_inicio TEXT NOT NULL,
		hora_fim TEXT,
		motivo_pausa TEXT,
		quantidade_executada INTEGER,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: at most one open record per (service, operator).
	-- The state machine checks this too, but the schema makes the race
	-- between two concurrent Starts by the same operator lose cleanly.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_executions_open
		ON executions(servico_id, user_id)
		WHERE hora_fim IS NULL;

	CREATE INDEX IF NOT EXISTS idx_executions_service
		ON executions(servico_id);

	-- Report window scans (hot path)
	CREATE INDEX IF NOT EXISTS idx_executions_user_start
		ON executions(user_id, hora_inicio DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONS (execution.TxStore)
// =============================================================================

// WithTx executes fn within a single SQL transaction. The store mutex is
// held for the duration so SQLite sees one writer at a time.
func (s *Store) WithTx(ctx context.Context, fn func(execution.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", execution.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	if err := fn(&txView{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// txView exposes the execution.Store surface over an open transaction.
type txView struct {
	q dbtx
}

func (v *txView) GetService(ctx context.Context, id execution.ServiceID) (*execution.Service, error) {
	return getService(ctx, v.q, id)
}

func (v *txView) SetServiceStatus(ctx context.Context, id execution.ServiceID, status execution.Status) error {
	return setServiceStatus(ctx, v.q, id, status)
}

func (v *txView) OpenRecord(ctx context.Context, rec execution.ExecutionRecord) error {
	return openRecord(ctx, v.q, rec)
}

func (v *txView) CloseRecord(ctx context.Context, id execution.RecordID, endedAt time.Time, quantity int, reason string) error {
	return closeRecord(ctx, v.q, id, endedAt, quantity, reason)
}

func (v *txView) FindOpenRecord(ctx context.Context, serviceID execution.ServiceID, operatorID execution.OperatorID) (*execution.ExecutionRecord, error) {
	return findOpenRecord(ctx, v.q, serviceID, operatorID)
}

func (v *txView) ListRecords(ctx context.Context, serviceID execution.ServiceID) ([]execution.ExecutionRecord, error) {
	return listRecords(ctx, v.q, serviceID)
}

func (v *txView) SumClosedQuantity(ctx context.Context, serviceID execution.ServiceID, exclude execution.RecordID) (int, error) {
	return sumClosedQuantity(ctx, v.q, serviceID, exclude)
}

// =============================================================================
// EXECUTION LEDGER (execution.Store)
// =============================================================================

func (s *Store) GetService(ctx context.Context, id execution.ServiceID) (*execution.Service, error) {
	return getService(ctx, s.db, id)
}

func (s *Store) SetServiceStatus(ctx context.Context, id execution.ServiceID, status execution.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setServiceStatus(ctx, s.db, id, status)
}

func (s *Store) OpenRecord(ctx context.Context, rec execution.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return openRecord(ctx, s.db, rec)
}

func (s *Store) CloseRecord(ctx context.Context, id execution.RecordID, endedAt time.Time, quantity int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return closeRecord(ctx, s.db, id, endedAt, quantity, reason)
}

func (s *Store) FindOpenRecord(ctx context.Context, serviceID execution.ServiceID, operatorID execution.OperatorID) (*execution.ExecutionRecord, error) {
	return findOpenRecord(ctx, s.db, serviceID, operatorID)
}

func (s *Store) ListRecords(ctx context.Context, serviceID execution.ServiceID) ([]execution.ExecutionRecord, error) {
	return listRecords(ctx, s.db, serviceID)
}

func (s *Store) SumClosedQuantity(ctx context.Context, serviceID execution.ServiceID, exclude execution.RecordID) (int, error) {
	return sumClosedQuantity(ctx, s.db, serviceID, exclude)
}

func openRecord(ctx context.Context, q dbtx, rec execution.ExecutionRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO executions (id, servico_id, user_id, hora_inicio, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.ServiceID, rec.OperatorID,
		formatTime(rec.StartedAt), formatTime(time.Now().UTC()),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return execution.ErrDuplicateOpenRecord
		}
		return fmt.Errorf("failed to open execution record: %w", err)
	}
	return nil
}

func closeRecord(ctx context.Context, q dbtx, id execution.RecordID, endedAt time.Time, quantity int, reason string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE executions
		SET hora_fim = ?, quantidade_executada = ?, motivo_pausa = ?
		WHERE id = ? AND hora_fim IS NULL`,
		formatTime(endedAt), quantity, nullString(reason), id,
	)
	if err != nil {
		return fmt.Errorf("failed to close execution record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Absent, or already closed: closes are write-once.
		return execution.ErrNoOpenRecord
	}
	return nil
}

func findOpenRecord(ctx context.Context, q dbtx, serviceID execution.ServiceID, operatorID execution.OperatorID) (*execution.ExecutionRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, servico_id, user_id, hora_inicio, hora_fim, motivo_pausa, quantidade_executada
		FROM executions
		WHERE servico_id = ? AND user_id = ? AND hora_fim IS NULL
		ORDER BY hora_inicio DESC
		LIMIT 1`,
		serviceID, operatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query open record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	rec, err := scanRecord(rows)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func listRecords(ctx context.Context, q dbtx, serviceID execution.ServiceID) ([]execution.ExecutionRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, servico_id, user_id, hora_inicio, hora_fim, motivo_pausa, quantidade_executada
		FROM executions
		WHERE servico_id = ?
		ORDER BY hora_inicio DESC, created_at DESC`,
		serviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []execution.ExecutionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func sumClosedQuantity(ctx context.Context, q dbtx, serviceID execution.ServiceID, exclude execution.RecordID) (int, error) {
	var total int
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantidade_executada), 0)
		FROM executions
		WHERE servico_id = ? AND hora_fim IS NOT NULL AND id != ?`,
		serviceID, exclude,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum closed quantity: %w", err)
	}
	return total, nil
}

func scanRecord(rows *sql.Rows) (execution.ExecutionRecord, error) {
	var (
		rec        execution.ExecutionRecord
		horaInicio string
		horaFim    sql.NullString
		motivo     sql.NullString
		quantidade sql.NullInt64
	)
	err := rows.Scan(&rec.ID, &rec.ServiceID, &rec.OperatorID,
		&horaInicio, &horaFim, &motivo, &quantidade)
	if err != nil {
		return rec, fmt.Errorf("failed to scan record: %w", err)
	}

	rec.StartedAt, _ = time.Parse(time.RFC3339, horaInicio)
	if horaFim.Valid {
		t, _ := time.Parse(time.RFC3339, horaFim.String)
		rec.EndedAt = &t
	}
	rec.PauseReason = motivo.String
	if quantidade.Valid {
		qty := int(quantidade.Int64)
		rec.Quantity = &qty
	}
	return rec, nil
}

// =============================================================================
// ORDERS
// =============================================================================

func (s *Store) SaveOrder(ctx context.Context, o execution.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, numero_pedido, cliente, data_criacao)
		VALUES (?, ?, ?, ?)`,
		o.ID, o.Number, o.Customer, formatTime(o.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateOrderNumber
		}
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id execution.OrderID) (*execution.Order, error) {
	return s.getOrderWhere(ctx, "id = ?", string(id))
}

func (s *Store) GetOrderByNumber(ctx context.Context, number string) (*execution.Order, error) {
	return s.getOrderWhere(ctx, "numero_pedido = ?", number)
}

func (s *Store) getOrderWhere(ctx context.Context, where string, arg any) (*execution.Order, error) {
	var (
		o       execution.Order
		created string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, numero_pedido, cliente, data_criacao FROM orders WHERE "+where, arg,
	).Scan(&o.ID, &o.Number, &o.Customer, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	o.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &o, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]execution.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, numero_pedido, cliente, data_criacao
		FROM orders
		ORDER BY data_criacao DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []execution.Order
	for rows.Next() {
		var (
			o       execution.Order
			created string
		)
		if err := rows.Scan(&o.ID, &o.Number, &o.Customer, &created); err != nil {
			return nil, err
		}
		o.CreatedAt, _ = time.Parse(time.RFC3339, created)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// DeleteOrder removes an order and its services in one transaction.
// Rejected with execution.ErrOrderHasExecutions once any child service has
// ledger entries: orders with recorded production are immutable.
func (s *Store) DeleteOrder(ctx context.Context, id execution.OrderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", execution.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	var executions int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM executions e
		JOIN services sv ON sv.id = e.servico_id
		WHERE sv.pedido_id = ?`, id,
	).Scan(&executions)
	if err != nil {
		return fmt.Errorf("failed to count executions: %w", err)
	}
	if executions > 0 {
		return execution.ErrOrderHasExecutions
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM services WHERE pedido_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete services: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM orders WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return execution.ErrOrderNotFound
	}

	return tx.Commit()
}

// =============================================================================
// SERVICES
// =============================================================================

func (s *Store) SaveService(ctx context.Context, svc execution.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO services
		(id, pedido_id, catalogo_id, tipo_servico, quantidade, preco_unitario, observacoes, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		svc.ID, svc.OrderID, nullString(svc.CatalogID), svc.Kind, svc.Target,
		svc.UnitPrice.String(), nullString(svc.Notes), svc.Status, formatTime(svc.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save service: %w", err)
	}
	return nil
}

func (s *Store) UpdateService(ctx context.Context, svc execution.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE services
		SET catalogo_id = ?, tipo_servico = ?, quantidade = ?, preco_unitario = ?, observacoes = ?
		WHERE id = ?`,
		nullString(svc.CatalogID), svc.Kind, svc.Target,
		svc.UnitPrice.String(), nullString(svc.Notes), svc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return execution.ErrServiceNotFound
	}
	return nil
}

func (s *Store) DeleteService(ctx context.Context, id execution.ServiceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM services WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return execution.ErrServiceNotFound
	}
	return nil
}

func (s *Store) ListServicesByOrder(ctx context.Context, orderID execution.OrderID) ([]execution.Service, error) {
	rows, err := s.db.QueryContext(ctx,
		serviceColumns+" FROM services WHERE pedido_id = ? ORDER BY created_at ASC, id ASC", orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var services []execution.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

const serviceColumns = `SELECT id, pedido_id, catalogo_id, tipo_servico, quantidade, preco_unitario, observacoes, status, created_at`

func getService(ctx context.Context, q dbtx, id execution.ServiceID) (*execution.Service, error) {
	rows, err := q.QueryContext(ctx, serviceColumns+" FROM services WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	svc, err := scanService(rows)
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func setServiceStatus(ctx context.Context, q dbtx, id execution.ServiceID, status execution.Status) error {
	res, err := q.ExecContext(ctx, "UPDATE services SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to set service status: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return execution.ErrServiceNotFound
	}
	return nil
}

func scanService(rows *sql.Rows) (execution.Service, error) {
	var (
		svc       execution.Service
		catalogID sql.NullString
		price     string
		notes     sql.NullString
		created   string
	)
	err := rows.Scan(&svc.ID, &svc.OrderID, &catalogID, &svc.Kind, &svc.Target,
		&price, &notes, &svc.Status, &created)
	if err != nil {
		return svc, fmt.Errorf("failed to scan service: %w", err)
	}
	svc.CatalogID = catalogID.String
	svc.UnitPrice, _ = decimal.NewFromString(price)
	svc.Notes = notes.String
	svc.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return svc, nil
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) SaveUser(ctx context.Context, op execution.Operator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	funcoes, _ := json.Marshal(op.Roles)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, nome, email, funcoes_json, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET nome = excluded.nome,
			email = excluded.email, funcoes_json = excluded.funcoes_json`,
		op.ID, op.Name, nullString(op.Email), string(funcoes), formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id execution.OperatorID) (*execution.Operator, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, nome, email, funcoes_json FROM users WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	op, err := scanUser(rows)
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]execution.Operator, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, nome, email, funcoes_json FROM users ORDER BY nome ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []execution.Operator
	for rows.Next() {
		op, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, op)
	}
	return users, rows.Err()
}

func scanUser(rows *sql.Rows) (execution.Operator, error) {
	var (
		op      execution.Operator
		email   sql.NullString
		funcoes string
	)
	if err := rows.Scan(&op.ID, &op.Name, &email, &funcoes); err != nil {
		return op, fmt.Errorf("failed to scan user: %w", err)
	}
	op.Email = email.String
	json.Unmarshal([]byte(funcoes), &op.Roles)
	return op, nil
}

// =============================================================================
// REPORT QUERY (report.Store)
// =============================================================================

// ExecutionRows returns ledger entries joined with operator, service and
// order data, newest start first. Nil filter fields are unbounded.
func (s *Store) ExecutionRows(ctx context.Context, filter execution.RecordFilter) ([]report.Row, error) {
	query := `
		SELECT e.id, e.servico_id, e.user_id, e.hora_inicio, e.hora_fim,
		       e.motivo_pausa, e.quantidade_executada,
		       u.nome, u.funcoes_json,
		       sv.tipo_servico, sv.quantidade, sv.preco_unitario, sv.observacoes,
		       o.id, o.numero_pedido, o.cliente
		FROM executions e
		JOIN users u ON u.id = e.user_id
		JOIN services sv ON sv.id = e.servico_id
		JOIN orders o ON o.id = sv.pedido_id
		WHERE 1=1`
	var args []any

	if filter.OperatorID != nil {
		query += " AND e.user_id = ?"
		args = append(args, *filter.OperatorID)
	}
	if filter.From != nil {
		query += " AND e.hora_inicio >= ?"
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		query += " AND e.hora_inicio <= ?"
		args = append(args, formatTime(*filter.To))
	}
	query += " ORDER BY e.hora_inicio DESC, e.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution rows: %w", err)
	}
	defer rows.Close()

	var result []report.Row
	for rows.Next() {
		var (
			row        report.Row
			horaInicio string
			horaFim    sql.NullString
			motivo     sql.NullString
			quantidade sql.NullInt64
			funcoes    string
			price      string
			notes      sql.NullString
		)
		err := rows.Scan(
			&row.Record.ID, &row.Record.ServiceID, &row.Record.OperatorID,
			&horaInicio, &horaFim, &motivo, &quantidade,
			&row.Operator.Name, &funcoes,
			&row.ServiceKind, &row.Target, &price, &notes,
			&row.OrderID, &row.OrderNumber, &row.Customer,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %w", err)
		}

		row.Operator.ID = row.Record.OperatorID
		json.Unmarshal([]byte(funcoes), &row.Operator.Roles)
		row.Record.StartedAt, _ = time.Parse(time.RFC3339, horaInicio)
		if horaFim.Valid {
			t, _ := time.Parse(time.RFC3339, horaFim.String)
			row.Record.EndedAt = &t
		}
		row.Record.PauseReason = motivo.String
		if quantidade.Valid {
			qty := int(quantidade.Int64)
			row.Record.Quantity = &qty
		}
		row.UnitPrice, _ = decimal.NewFromString(price)
		row.Notes = notes.String

		result = append(result, row)
	}
	return result, rows.Err()
}

// =============================================================================
// CATALOG (catalog.Store)
// =============================================================================

func (s *Store) ListCatalogItems(ctx context.Context) ([]catalog.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, nome, funcao, preco_padrao FROM catalog_items ORDER BY nome ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog items: %w", err)
	}
	defer rows.Close()

	var items []catalog.Item
	for rows.Next() {
		item, err := scanCatalogItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) GetCatalogItem(ctx context.Context, id string) (*catalog.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, nome, funcao, preco_padrao FROM catalog_items WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog item: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	item, err := scanCatalogItem(rows)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveCatalogItem(ctx context.Context, item catalog.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := formatTime(time.Now().UTC())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog_items (id, nome, funcao, preco_padrao, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, item.Kind, item.DefaultPrice.String(), now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return catalog.ErrDuplicateName
		}
		return fmt.Errorf("failed to save catalog item: %w", err)
	}
	return nil
}

func (s *Store) UpdateCatalogItem(ctx context.Context, item catalog.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE catalog_items
		SET nome = ?, funcao = ?, preco_padrao = ?, updated_at = ?
		WHERE id = ?`,
		item.Name, item.Kind, item.DefaultPrice.String(),
		formatTime(time.Now().UTC()), item.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return catalog.ErrDuplicateName
		}
		return fmt.Errorf("failed to update catalog item: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return catalog.ErrItemNotFound
	}
	return nil
}

func (s *Store) DeleteCatalogItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM catalog_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete catalog item: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return catalog.ErrItemNotFound
	}
	return nil
}

// ImportCatalogItems inserts the batch in one transaction, skipping items
// whose nome already exists. All-or-nothing: any other failure rolls the
// whole import back.
func (s *Store) ImportCatalogItems(ctx context.Context, items []catalog.Item) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", execution.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now().UTC())
	imported := 0
	for _, item := range items {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO catalog_items (id, nome, funcao, preco_padrao, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(nome) DO NOTHING`,
			item.ID, item.Name, item.Kind, item.DefaultPrice.String(), now, now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to import catalog item %q: %w", item.Name, err)
		}
		affected, _ := res.RowsAffected()
		imported += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return imported, nil
}

func scanCatalogItem(rows *sql.Rows) (catalog.Item, error) {
	var (
		item  catalog.Item
		price string
	)
	if err := rows.Scan(&item.ID, &item.Name, &item.Kind, &price); err != nil {
		return item, fmt.Errorf("failed to scan catalog item: %w", err)
	}
	item.DefaultPrice, _ = decimal.NewFromString(price)
	return item, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
