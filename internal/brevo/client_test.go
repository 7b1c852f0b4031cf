package brevo

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eubiosis/checkout/internal/domain/notify"
)

func TestClient_Send(t *testing.T) {
	var (
		gotKey     string
		gotSubject string
		gotSender  string
		gotTo      []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-key")
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		d := jx.DecodeBytes(body)
		assert.NoError(t, d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "subject":
				v, err := d.Str()
				gotSubject = v
				return err
			case "sender":
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key != "email" {
						return d.Skip()
					}
					v, err := d.Str()
					gotSender = v
					return err
				})
			case "to":
				return d.Arr(func(d *jx.Decoder) error {
					return d.Obj(func(d *jx.Decoder, key string) error {
						if key != "email" {
							return d.Skip()
						}
						v, err := d.Str()
						gotTo = append(gotTo, v)
						return err
					})
				})
			default:
				return d.Skip()
			}
		}))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"<202603141000.123@smtp-relay.mailin.fr>"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "xkeysib-test", URL: srv.URL, SenderEmail: "info@eubiosis.pro"},
		Options{HTTPClient: srv.Client()})

	id, err := c.Send(context.Background(), notify.Message{
		To:      []notify.Recipient{{Email: "orders@eubiosis.pro", Name: "Eubiosis"}},
		Subject: "Order Confirmation - Payment Pending",
		HTML:    "<p>hi</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "<202603141000.123@smtp-relay.mailin.fr>", id)
	assert.Equal(t, "xkeysib-test", gotKey)
	assert.Equal(t, "Order Confirmation - Payment Pending", gotSubject)
	assert.Equal(t, "info@eubiosis.pro", gotSender)
	assert.Equal(t, []string{"orders@eubiosis.pro"}, gotTo)
}

func TestClient_SendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"unauthorized","message":"Key not found"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL}, Options{HTTPClient: srv.Client()})
	_, err := c.Send(context.Background(), notify.Message{To: []notify.Recipient{{Email: "a@b.co"}}})
	assert.ErrorIs(t, err, ErrSendFailed)
}
