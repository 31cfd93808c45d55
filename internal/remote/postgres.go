package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pos_ledger/internal/catalog"
	"pos_ledger/internal/expenses"
	"pos_ledger/internal/remotesync"
	"pos_ledger/internal/sales"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoSuchRecord is returned when an update or delete matches no row.
var ErrNoSuchRecord = errors.New("no such record in remote store")

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	price    NUMERIC NOT NULL,
	category TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS sales (
	id                    TEXT PRIMARY KEY,
	order_number          INTEGER NOT NULL,
	date                  TIMESTAMPTZ NOT NULL,
	items                 JSONB NOT NULL,
	total                 NUMERIC NOT NULL,
	payment_method        TEXT NOT NULL,
	exchange_rate_at_sale NUMERIC NOT NULL CHECK (exchange_rate_at_sale > 0),
	status                TEXT NOT NULL,
	customer_name         TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS expenses (
	id          TEXT PRIMARY KEY,
	date        TIMESTAMPTZ NOT NULL,
	amount      NUMERIC NOT NULL CHECK (amount > 0),
	description TEXT NOT NULL,
	category    TEXT NOT NULL
);`

// PostgresStore keeps products, sales and expenses in three tables.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ remotesync.Remote = (*PostgresStore)(nil)

// NewPostgresStore prepares a pool for databaseURL. Connections are opened on
// first use, so an unreachable database does not fail here.
func NewPostgresStore(ctx context.Context, databaseURL string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	cfg.LazyConnect = true
	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Close releases every connection.
func (p *PostgresStore) Close() { p.pool.Close() }

// Init creates the tables when missing.
func (p *PostgresStore) Init(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Fetch reads the three tables concurrently, sales and expenses newest first.
func (p *PostgresStore) Fetch(ctx context.Context) (remotesync.Snapshot, error) {
	var snap remotesync.Snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Products, err = p.products(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Sales, err = p.sales(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Expenses, err = p.expenses(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return remotesync.Snapshot{}, err
	}
	return snap, nil
}

func (p *PostgresStore) products(ctx context.Context) ([]catalog.Product, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, price::text, category FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var out []catalog.Product
	for rows.Next() {
		var pr catalog.Product
		var price string
		if err := rows.Scan(&pr.ID, &pr.Name, &price, &pr.Category); err != nil {
			return nil, err
		}
		if pr.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("product %s price: %w", pr.ID, err)
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (p *PostgresStore) sales(ctx context.Context) ([]sales.Sale, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, order_number, date, items::text, total::text, payment_method,
		       exchange_rate_at_sale::text, status, customer_name
		FROM sales ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}
	defer rows.Close()

	var out []sales.Sale
	for rows.Next() {
		var s sales.Sale
		var items, total, rate, method, status string
		if err := rows.Scan(&s.ID, &s.OrderNumber, &s.Date, &items, &total, &method, &rate, &status, &s.CustomerName); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(items), &s.Items); err != nil {
			return nil, fmt.Errorf("sale %s items: %w", s.ID, err)
		}
		if s.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("sale %s total: %w", s.ID, err)
		}
		if s.ExchangeRateAtSale, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("sale %s rate: %w", s.ID, err)
		}
		s.PaymentMethod = sales.PaymentMethod(method)
		s.Status = sales.Status(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) expenses(ctx context.Context) ([]expenses.Expense, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, date, amount::text, description, category
		FROM expenses ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("select expenses: %w", err)
	}
	defer rows.Close()

	var out []expenses.Expense
	for rows.Next() {
		var e expenses.Expense
		var amount, category string
		if err := rows.Scan(&e.ID, &e.Date, &amount, &e.Description, &category); err != nil {
			return nil, err
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("expense %s amount: %w", e.ID, err)
		}
		e.Category = expenses.Category(category)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SaveSale(ctx context.Context, s sales.Sale) error {
	items, err := json.Marshal(s.Items)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO sales (id, order_number, date, items, total, payment_method, exchange_rate_at_sale, status, customer_name)
		VALUES ($1, $2, $3, $4::jsonb, $5::numeric, $6, $7::numeric, $8, $9)`,
		s.ID, s.OrderNumber, s.Date, string(items), s.Total.String(), string(s.PaymentMethod),
		s.ExchangeRateAtSale.String(), string(s.Status), s.CustomerName)
	if err != nil {
		return fmt.Errorf("insert sale %s: %w", s.ID, err)
	}
	return nil
}

func (p *PostgresStore) UpdateSaleStatus(ctx context.Context, id string, status sales.Status) error {
	return p.execOne(ctx, "update sale "+id, `UPDATE sales SET status = $2 WHERE id = $1`, id, string(status))
}

func (p *PostgresStore) SaveProduct(ctx context.Context, pr catalog.Product) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO products (id, name, price, category) VALUES ($1, $2, $3::numeric, $4)`,
		pr.ID, pr.Name, pr.Price.String(), pr.Category)
	if err != nil {
		return fmt.Errorf("insert product %s: %w", pr.ID, err)
	}
	return nil
}

func (p *PostgresStore) UpdateProduct(ctx context.Context, pr catalog.Product) error {
	return p.execOne(ctx, "update product "+pr.ID,
		`UPDATE products SET name = $2, price = $3::numeric, category = $4 WHERE id = $1`,
		pr.ID, pr.Name, pr.Price.String(), pr.Category)
}

func (p *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	return p.execOne(ctx, "delete product "+id, `DELETE FROM products WHERE id = $1`, id)
}

func (p *PostgresStore) SaveExpense(ctx context.Context, e expenses.Expense) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO expenses (id, date, amount, description, category)
		VALUES ($1, $2, $3::numeric, $4, $5)`,
		e.ID, e.Date, e.Amount.String(), e.Description, string(e.Category))
	if err != nil {
		return fmt.Errorf("insert expense %s: %w", e.ID, err)
	}
	return nil
}

func (p *PostgresStore) DeleteExpense(ctx context.Context, id string) error {
	return p.execOne(ctx, "delete expense "+id, `DELETE FROM expenses WHERE id = $1`, id)
}

// execOne runs an update or delete that must touch exactly one row.
func (p *PostgresStore) execOne(ctx context.Context, what, sql string, args ...any) error {
	tag, err := p.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", what, ErrNoSuchRecord)
	}
	p.logger.Debug("remote row written", zap.String("op", what))
	return nil
}
