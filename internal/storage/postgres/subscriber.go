package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eubiosis/checkout/internal/domain/subscriber"
)

var _ subscriber.Repository = (*SubscriberRepository)(nil)

// SubscriberRepository implements subscriber.Repository.
type SubscriberRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriberRepository returns a SubscriberRepository.
func NewSubscriberRepository(pool *pgxpool.Pool) *SubscriberRepository {
	return &SubscriberRepository{pool: pool}
}

func (r *SubscriberRepository) Insert(ctx context.Context, s subscriber.Subscriber) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO subscribers (email, source, created_at) VALUES ($1, $2, $3) ON CONFLICT (email) DO NOTHING`,
		s.Email, s.Source, s.CreatedAt,
	)
	if err != nil {
		return false, errors.Wrap(err, "insert subscriber")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SubscriberRepository) Exists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM subscribers WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "check subscriber")
	}
	return exists, nil
}

func (r *SubscriberRepository) Emails(ctx context.Context, fn func(string) error) error {
	rows, err := r.pool.Query(ctx, `SELECT email FROM subscribers`)
	if err != nil {
		return errors.Wrap(err, "query subscribers")
	}
	defer rows.Close()

	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return errors.Wrap(err, "scan subscriber")
		}
		if err := fn(email); err != nil {
			return err
		}
	}
	return errors.Wrap(rows.Err(), "iterate subscribers")
}
