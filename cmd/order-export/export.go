package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/eubiosis/checkout/internal/domain/order"
	"github.com/eubiosis/checkout/internal/domain/pricing"
)

const (
	bufferedRows  = 256
	progressEvery = 1_000
)

// source streams orders to fn.
type source func(ctx context.Context, fn func(*order.Order) error) error

var header = []string{
	"order_number", "order_id", "created_at", "status", "payment_method",
	"first_name", "last_name", "email", "phone",
	"address", "city", "postal_code", "province", "country",
	"size", "quantity", "bundle", "upsell_discount", "took_big_offer", "irresistible_offer", "oto_price",
	"subtotal", "discount", "total", "mail_sent",
}

func record(o *order.Order) []string {
	c := o.Customer
	return []string{
		o.Number(), o.ID, o.CreatedAt.UTC().Format(time.RFC3339), string(o.Status), string(o.PaymentMethod),
		c.FirstName, c.LastName, c.Email, c.Phone,
		c.Address, c.City, c.PostalCode, c.Province, c.Country,
		string(o.Size), strconv.Itoa(o.Quantity), strconv.FormatBool(o.IsBundle), strconv.Itoa(o.UpsellDiscount),
		strconv.FormatBool(o.TookBigOffer), strconv.FormatBool(o.IrresistibleOffer), o.OTOPrice.StringFixed(2),
		pricing.FromMinorUnits(o.SubtotalCents).StringFixed(2),
		pricing.FromMinorUnits(o.DiscountAmountCents).StringFixed(2),
		pricing.FromMinorUnits(o.TotalAmountCents).StringFixed(2),
		strconv.FormatBool(o.MailSent),
	}
}

// export writes the orders of src to w as gzip-compressed CSV and returns
// the number of rows. Reading and compression run concurrently.
func export(ctx context.Context, w io.Writer, src source) (int, error) {
	rows := make(chan []string, bufferedRows)
	var count int

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(rows)
		return src(ctx, func(o *order.Order) error {
			select {
			case rows <- record(o):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})
	g.Go(func() error {
		gz := pgzip.NewWriter(w)
		cw := csv.NewWriter(gz)
		if err := cw.Write(header); err != nil {
			return errors.Wrap(err, "write header")
		}
		for row := range rows {
			if err := cw.Write(row); err != nil {
				return errors.Wrap(err, "write row")
			}
			count++
			if count%progressEvery == 0 {
				slog.Info("export progress", slog.Int("orders", count))
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return errors.Wrap(err, "flush csv")
		}
		return errors.Wrap(gz.Close(), "close gzip")
	})

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return count, nil
}
