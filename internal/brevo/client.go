// Package brevo is a client for the Brevo transactional email API.
package brevo

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/eubiosis/checkout/internal/domain/notify"
)

// DefaultURL is the transactional email endpoint.
const DefaultURL = "https://api.brevo.com/v3/smtp/email"

// ErrSendFailed is returned for any non-2xx response.
var ErrSendFailed = errors.New("email send failed")

// Config configures the client.
type Config struct {
	APIKey      string
	URL         string
	SenderName  string
	SenderEmail string
}

// Options are optional client dependencies.
type Options struct {
	HTTPClient     *http.Client
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Timeout        time.Duration
}

// Client sends email through Brevo. It implements notify.Sender.
type Client struct {
	cfg  Config
	http *http.Client
}

var _ notify.Sender = (*Client)(nil)

// NewClient creates a Client. Without an explicit HTTP client, requests go
// through an otelhttp transport.
func NewClient(cfg Config, opts Options) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.SenderName == "" {
		cfg.SenderName = "Eubiosis"
	}
	hc := opts.HTTPClient
	if hc == nil {
		var otelOpts []otelhttp.Option
		if opts.TracerProvider != nil {
			otelOpts = append(otelOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
		}
		if opts.MeterProvider != nil {
			otelOpts = append(otelOpts, otelhttp.WithMeterProvider(opts.MeterProvider))
		}
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport, otelOpts...),
			Timeout:   timeout,
		}
	}
	return &Client{cfg: cfg, http: hc}
}

// Send delivers m and returns the Brevo message ID.
func (c *Client) Send(ctx context.Context, m notify.Message) (string, error) {
	body := c.encode(m)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "create request")
	}
	req.Header.Set("api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.Wrapf(ErrSendFailed, "status %d", resp.StatusCode)
	}

	id, err := decodeMessageID(data)
	if err != nil {
		return "", errors.Wrap(err, "decode response")
	}
	return id, nil
}

func (c *Client) encode(m notify.Message) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("sender")
	e.ObjStart()
	e.FieldStart("name")
	e.Str(c.cfg.SenderName)
	e.FieldStart("email")
	e.Str(c.cfg.SenderEmail)
	e.ObjEnd()

	e.FieldStart("to")
	e.ArrStart()
	for _, r := range m.To {
		e.ObjStart()
		e.FieldStart("email")
		e.Str(r.Email)
		if r.Name != "" {
			e.FieldStart("name")
			e.Str(r.Name)
		}
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("subject")
	e.Str(m.Subject)
	e.FieldStart("htmlContent")
	e.Str(m.HTML)
	e.ObjEnd()

	return append([]byte(nil), e.Bytes()...)
}

func decodeMessageID(data []byte) (string, error) {
	var id string
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "messageId" {
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return err
		}
		id = v
		return nil
	})
	return id, err
}
