package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hongminglow/pawmart/internal/models"
	"github.com/hongminglow/pawmart/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ensure Store satisfies the storage.Store interface at compile time.
var _ storage.Store = (*Store)(nil)

// Store provides Postgres-backed persistence for the marketplace API.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store and runs migrations.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'customer',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS vendors (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT UNIQUE NOT NULL REFERENCES users(id),
			store_name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			rejection_reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS products (
			id BIGSERIAL PRIMARY KEY,
			vendor_id BIGINT NOT NULL REFERENCES vendors(id),
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price NUMERIC(24,2) NOT NULL DEFAULT 0,
			stock INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			rejection_reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS products_status_idx ON products (status);`,
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			vendor_id BIGINT NOT NULL REFERENCES vendors(id),
			user_id BIGINT NOT NULL REFERENCES users(id),
			status TEXT NOT NULL DEFAULT 'pending',
			items JSONB NOT NULL DEFAULT '[]',
			total NUMERIC(24,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS orders_status_created_idx ON orders (status, created_at);`,
		`CREATE TABLE IF NOT EXISTS coupons (
			code TEXT PRIMARY KEY,
			vendor_id BIGINT REFERENCES vendors(id),
			discount_type TEXT NOT NULL,
			discount_value NUMERIC(24,2) NOT NULL,
			min_order_value NUMERIC(24,2) NOT NULL DEFAULT 0,
			starts_at TIMESTAMPTZ NOT NULL,
			ends_at TIMESTAMPTZ NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

const userColumns = `id, email, display_name, phone, role, active, password_hash, created_at`

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	query := `
		INSERT INTO users (email, display_name, phone, role, active, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query, user.Email, user.DisplayName, user.Phone, user.Role, user.Active, user.PasswordHash)
	created, err := scanUser(row)
	if err != nil {
		return models.User{}, uniqueViolation(err)
	}
	return created, nil
}

// FindUserByID fetches a user by primary key.
func (s *Store) FindUserByID(ctx context.Context, id int64) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindUserByEmail fetches a user by email address, ignoring case.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context, role string) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
	SELECT `+userColumns+` FROM users
	WHERE $1 = '' OR role = $1
	ORDER BY id`, role)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return collect(rows, scanUser)
}

func (s *Store) SetUserActive(ctx context.Context, id int64, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET active = $2 WHERE id = $1`, id, active)
	return affected(tag, err)
}

const vendorColumns = `id, user_id, store_name, email, phone, address, status, rejection_reason, created_at`

// SaveVendorRequest inserts an application, or reopens the caller's rejected one.
func (s *Store) SaveVendorRequest(ctx context.Context, profile models.VendorProfile) (models.VendorProfile, error) {
	query := `
		INSERT INTO vendors (user_id, store_name, email, phone, address, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		ON CONFLICT (user_id) DO UPDATE SET
			store_name = EXCLUDED.store_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			status = 'pending',
			rejection_reason = ''
		WHERE vendors.status = 'rejected'
		RETURNING ` + vendorColumns
	row := s.pool.QueryRow(ctx, query, profile.UserID, profile.StoreName, profile.Email, profile.Phone, profile.Address)
	saved, err := scanVendor(row)
	if errors.Is(err, storage.ErrNotFound) {
		// The conflicting row exists but is not rejected.
		return models.VendorProfile{}, storage.ErrAlreadyExists
	}
	return saved, err
}

func (s *Store) FindVendorByID(ctx context.Context, id int64) (models.VendorProfile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id = $1`, id)
	return scanVendor(row)
}

func (s *Store) FindVendorByUser(ctx context.Context, userID int64) (models.VendorProfile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE user_id = $1`, userID)
	return scanVendor(row)
}

func (s *Store) ListVendorsByStatus(ctx context.Context, status string) ([]models.VendorProfile, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE status = $1 ORDER BY id`, status)
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	return collect(rows, scanVendor)
}

// SetVendorStatus is a compare-and-set on the current status. An approval
// promotes a customer owner inside the same transaction.
func (s *Store) SetVendorStatus(ctx context.Context, id int64, from, to, reason string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin vendor decision: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID int64
	err = tx.QueryRow(ctx, `
		UPDATE vendors SET status = $3, rejection_reason = $4
		WHERE id = $1 AND status = $2
		RETURNING user_id`, id, from, to, reason).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := s.FindVendorByID(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("set vendor status: %w", err)
	}
	if to == models.VendorApproved {
		_, err := tx.Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1 AND role = $3`,
			userID, models.RoleVendor, models.RoleCustomer)
		if err != nil {
			return false, fmt.Errorf("promote vendor owner: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit vendor decision: %w", err)
	}
	return true, nil
}

const productColumns = `id, vendor_id, name, description, price, stock, status, rejection_reason, created_at`

func (s *Store) CreateProduct(ctx context.Context, product models.Product) (models.Product, error) {
	query := `
		INSERT INTO products (vendor_id, name, description, price, stock, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + productColumns
	row := s.pool.QueryRow(ctx, query, product.VendorID, product.Name, product.Description, product.Price, product.Stock, product.Status)
	return scanProduct(row)
}

func (s *Store) FindProduct(ctx context.Context, id int64) (models.Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

func (s *Store) ListProductsByVendor(ctx context.Context, vendorID int64) ([]models.Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE vendor_id = $1 ORDER BY id`, vendorID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return collect(rows, scanProduct)
}

func (s *Store) ListProductsByStatus(ctx context.Context, status string) ([]models.Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE status = $1 ORDER BY id`, status)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return collect(rows, scanProduct)
}

func (s *Store) SetProductStatus(ctx context.Context, id int64, from, to, reason string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE products SET status = $3, rejection_reason = $4
		WHERE id = $1 AND status = $2`, id, from, to, reason)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := s.FindProduct(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

const orderColumns = `id, vendor_id, user_id, status, items, total, created_at`

func (s *Store) CreateOrder(ctx context.Context, order models.Order) (models.Order, error) {
	if order.Status == "" {
		order.Status = models.OrderPending
	}
	query := `
		INSERT INTO orders (vendor_id, user_id, status, items, total)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + orderColumns
	row := s.pool.QueryRow(ctx, query, order.VendorID, order.UserID, order.Status, order.Items, order.ComputeTotal())
	return scanOrder(row)
}

func (s *Store) FindOrder(ctx context.Context, id int64) (models.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (s *Store) ListOrdersByVendor(ctx context.Context, vendorID int64) ([]models.Order, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE vendor_id = $1 ORDER BY id`, vendorID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return collect(rows, scanOrder)
}

func (s *Store) ListOrdersOlderThan(ctx context.Context, status string, cutoff time.Time) ([]models.Order, error) {
	rows, err := s.pool.Query(ctx, `
	SELECT `+orderColumns+` FROM orders
	WHERE status = $1 AND created_at < $2
	ORDER BY id`, status, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale orders: %w", err)
	}
	return collect(rows, scanOrder)
}

// SetOrderStatus is a compare-and-set on the current status.
func (s *Store) SetOrderStatus(ctx context.Context, id int64, from, to string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := s.FindOrder(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

const couponColumns = `code, vendor_id, discount_type, discount_value, min_order_value, starts_at, ends_at`

func (s *Store) CreateCoupon(ctx context.Context, coupon models.Coupon) (models.Coupon, error) {
	query := `
		INSERT INTO coupons (code, vendor_id, discount_type, discount_value, min_order_value, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + couponColumns
	row := s.pool.QueryRow(ctx, query, coupon.Code, coupon.VendorID, coupon.DiscountType,
		coupon.DiscountValue, coupon.MinOrderValue, coupon.StartsAt, coupon.EndsAt)
	created, err := scanCoupon(row)
	if err != nil {
		return models.Coupon{}, uniqueViolation(err)
	}
	return created, nil
}

func (s *Store) FindCoupon(ctx context.Context, code string) (models.Coupon, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code)
	return scanCoupon(row)
}

func (s *Store) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	return collect(rows, scanCoupon)
}

func (s *Store) DeleteCoupon(ctx context.Context, code string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM coupons WHERE code = $1`, code)
	return affected(tag, err)
}

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Phone, &u.Role, &u.Active, &u.PasswordHash, &u.CreatedAt)
	return u, notFound(err)
}

func scanVendor(row pgx.Row) (models.VendorProfile, error) {
	var v models.VendorProfile
	err := row.Scan(&v.ID, &v.UserID, &v.StoreName, &v.Email, &v.Phone, &v.Address, &v.Status, &v.RejectionReason, &v.CreatedAt)
	return v, notFound(err)
}

func scanProduct(row pgx.Row) (models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.VendorID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Status, &p.RejectionReason, &p.CreatedAt)
	return p, notFound(err)
}

func scanOrder(row pgx.Row) (models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.VendorID, &o.UserID, &o.Status, &o.Items, &o.Total, &o.CreatedAt)
	return o, notFound(err)
}

func scanCoupon(row pgx.Row) (models.Coupon, error) {
	var c models.Coupon
	err := row.Scan(&c.Code, &c.VendorID, &c.DiscountType, &c.DiscountValue, &c.MinOrderValue, &c.StartsAt, &c.EndsAt)
	return c, notFound(err)
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return storage.ErrAlreadyExists
	}
	return err
}

func affected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
