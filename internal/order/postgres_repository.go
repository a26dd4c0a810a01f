package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/osanz/go_market/internal/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(cred *Credentials) (*PostgresRepository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &PostgresRepository{db: db}, nil
}

// DB exposes the underlying handle so the coupon store can share the
// connection pool.
func (r *PostgresRepository) DB() *sql.DB {
	return r.db
}

func (r *PostgresRepository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "market_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

type orderRow struct {
	items    []byte
	totals   []byte
	coupons  []byte
	address  []byte
	payment  []byte
	shipment []byte
	delivery []byte
	history  []byte
}

func marshalOrder(order *domain.Order) (*orderRow, error) {
	row := &orderRow{}
	var err error

	if row.items, err = json.Marshal(order.Items); err != nil {
		return nil, fmt.Errorf("marshal order items: %w", err)
	}
	if row.totals, err = json.Marshal(order.Totals); err != nil {
		return nil, fmt.Errorf("marshal order totals: %w", err)
	}
	if row.coupons, err = json.Marshal(order.Coupons); err != nil {
		return nil, fmt.Errorf("marshal order coupons: %w", err)
	}
	if row.address, err = json.Marshal(order.Address); err != nil {
		return nil, fmt.Errorf("marshal order address: %w", err)
	}
	if row.payment, err = json.Marshal(order.Payment); err != nil {
		return nil, fmt.Errorf("marshal order payment: %w", err)
	}
	if row.history, err = json.Marshal(order.History); err != nil {
		return nil, fmt.Errorf("marshal order history: %w", err)
	}
	if order.Shipment != nil {
		if row.shipment, err = json.Marshal(order.Shipment); err != nil {
			return nil, fmt.Errorf("marshal order shipment: %w", err)
		}
	}
	if order.Delivery != nil {
		if row.delivery, err = json.Marshal(order.Delivery); err != nil {
			return nil, fmt.Errorf("marshal order delivery: %w", err)
		}
	}

	return row, nil
}

func unmarshalOrder(order *domain.Order, row *orderRow) error {
	if err := json.Unmarshal(row.items, &order.Items); err != nil {
		return fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(row.totals, &order.Totals); err != nil {
		return fmt.Errorf("unmarshal order totals: %w", err)
	}
	if err := json.Unmarshal(row.coupons, &order.Coupons); err != nil {
		return fmt.Errorf("unmarshal order coupons: %w", err)
	}
	if err := json.Unmarshal(row.address, &order.Address); err != nil {
		return fmt.Errorf("unmarshal order address: %w", err)
	}
	if err := json.Unmarshal(row.payment, &order.Payment); err != nil {
		return fmt.Errorf("unmarshal order payment: %w", err)
	}
	if err := json.Unmarshal(row.history, &order.History); err != nil {
		return fmt.Errorf("unmarshal order history: %w", err)
	}
	if len(row.shipment) > 0 {
		order.Shipment = &domain.Shipment{}
		if err := json.Unmarshal(row.shipment, order.Shipment); err != nil {
			return fmt.Errorf("unmarshal order shipment: %w", err)
		}
	}
	if len(row.delivery) > 0 {
		order.Delivery = &domain.Receipt{}
		if err := json.Unmarshal(row.delivery, order.Delivery); err != nil {
			return fmt.Errorf("unmarshal order delivery: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	row, err := marshalOrder(order)
	if err != nil {
		return err
	}

	query := `INSERT INTO orders
	          (id, user_id, items, totals, coupons, address, payment, status,
	           shipment, delivery, review_eligible, history, version, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())`

	_, insertErr := r.db.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		row.items,
		row.totals,
		row.coupons,
		row.address,
		row.payment,
		order.Status,
		nullable(row.shipment),
		nullable(row.delivery),
		order.ReviewEligible,
		row.history,
		order.Version)

	if insertErr != nil {
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

const selectOrder = `SELECT id, user_id, items, totals, coupons, address, payment, status,
                            shipment, delivery, review_eligible, history, version, created_at, updated_at
                     FROM orders`

func (r *PostgresRepository) scanOrder(scan func(...any) error) (*domain.Order, error) {
	var order domain.Order
	var row orderRow

	err := scan(
		&order.ID,
		&order.UserID,
		&row.items,
		&row.totals,
		&row.coupons,
		&row.address,
		&row.payment,
		&order.Status,
		&row.shipment,
		&row.delivery,
		&order.ReviewEligible,
		&row.history,
		&order.Version,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalOrder(&order, &row); err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *PostgresRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, selectOrder+` WHERE id = $1`, id)

	order, err := r.scanOrder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *PostgresRepository) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		selectOrder+` WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// ListOrdersByVendorID returns every order carrying at least one line from the
// vendor. Lines are vendor-tagged exactly so this view stays a single jsonb
// containment query.
func (r *PostgresRepository) ListOrdersByVendorID(ctx context.Context, vendorID int64) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		selectOrder+` WHERE items @> jsonb_build_array(jsonb_build_object('vendor_id', $1::bigint))
		 ORDER BY created_at DESC`, vendorID)
	if err != nil {
		return nil, fmt.Errorf("query orders by vendor id: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

func (r *PostgresRepository) collect(rows *sql.Rows) ([]*domain.Order, error) {
	var orders []*domain.Order
	for rows.Next() {
		order, err := r.scanOrder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

// UpdateOrder writes the mutable lifecycle fields conditionally on the version
// the caller loaded. Zero rows means either the order vanished or someone got
// there first; the distinction decides retryability.
func (r *PostgresRepository) UpdateOrder(ctx context.Context, order *domain.Order) error {
	row, err := marshalOrder(order)
	if err != nil {
		return err
	}

	query := `UPDATE orders
	          SET status = $2, shipment = $3, delivery = $4, review_eligible = $5,
	              history = $6, version = version + 1, updated_at = NOW()
	          WHERE id = $1 AND version = $7`

	result, updateErr := r.db.ExecContext(ctx, query,
		order.ID,
		order.Status,
		nullable(row.shipment),
		nullable(row.delivery),
		order.ReviewEligible,
		row.history,
		order.Version)
	if updateErr != nil {
		return fmt.Errorf("update order: %w", updateErr)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if affected == 0 {
		var exists bool
		checkErr := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, order.ID).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("check order existence: %w", checkErr)
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrVersionConflict
	}

	order.Version++
	return nil
}
