package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eubiosis/checkout/internal/domain/order"
	"github.com/eubiosis/checkout/internal/domain/pricing"
)

const createOrderSQL = `INSERT INTO orders (
	first_name, last_name, email, phone, address, city, postal_code, province, country,
	product_size, quantity, is_bundle, upsell_discount, took_big_offer, irresistible_offer,
	oto_price, payment_method, subtotal, discount_amount, total_amount, status, mail_sent
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
RETURNING id::text, created_at`

const orderColumns = `id::text, created_at,
	first_name, last_name, email, phone, address, city, postal_code, province, country,
	product_size, quantity, is_bundle, upsell_discount, took_big_offer, irresistible_offer,
	oto_price, payment_method, subtotal, discount_amount, total_amount, status, mail_sent`

const getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

const streamOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
	WHERE ($1 = '' OR status = $1)
	ORDER BY created_at`

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts o and fills in its generated ID and creation time.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	c := o.Customer
	err := r.pool.QueryRow(ctx, createOrderSQL,
		c.FirstName, c.LastName, c.Email, c.Phone, c.Address, c.City, c.PostalCode, c.Province, c.Country,
		string(o.Size), o.Quantity, o.IsBundle, o.UpsellDiscount, o.TookBigOffer, o.IrresistibleOffer,
		o.OTOPrice, string(o.PaymentMethod), o.SubtotalCents, o.DiscountAmountCents, o.TotalAmountCents,
		string(o.Status), o.MailSent,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert order")
	}
	return nil
}

// GetByID returns the order with the given ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, getOrderSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return o, nil
}

// Stream calls fn for every order with the given status, oldest first. An
// empty status matches all orders.
func (r *OrderRepository) Stream(ctx context.Context, status order.Status, fn func(*order.Order) error) error {
	rows, err := r.pool.Query(ctx, streamOrdersSQL, string(status))
	if err != nil {
		return errors.Wrap(err, "query orders")
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return errors.Wrap(err, "scan order")
		}
		if err := fn(o); err != nil {
			return err
		}
	}
	return errors.Wrap(rows.Err(), "iterate orders")
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o      order.Order
		size   string
		method string
		status string
	)
	c := &o.Customer
	err := row.Scan(&o.ID, &o.CreatedAt,
		&c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address, &c.City, &c.PostalCode, &c.Province, &c.Country,
		&size, &o.Quantity, &o.IsBundle, &o.UpsellDiscount, &o.TookBigOffer, &o.IrresistibleOffer,
		&o.OTOPrice, &method, &o.SubtotalCents, &o.DiscountAmountCents, &o.TotalAmountCents, &status, &o.MailSent,
	)
	if err != nil {
		return nil, err
	}
	o.Size = pricing.Size(size)
	o.PaymentMethod = order.PaymentMethod(method)
	o.Status = order.Status(status)
	return &o, nil
}
