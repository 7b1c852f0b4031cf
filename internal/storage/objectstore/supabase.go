// Package objectstore stores proof-of-payment images in Supabase Storage.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/eubiosis/checkout/internal/domain/checkout"
)

// DefaultBucket holds the transfer proofs.
const DefaultBucket = "eft imgs"

// ErrUploadFailed is returned for any non-2xx storage response.
var ErrUploadFailed = errors.New("storage upload failed")

// Config configures the store.
type Config struct {
	// BaseURL is the Supabase project URL.
	BaseURL    string
	ServiceKey string
	Bucket     string
}

// Store uploads proofs. It implements checkout.ProofStore.
type Store struct {
	cfg  Config
	http *http.Client
	now  func() time.Time
}

var _ checkout.ProofStore = (*Store)(nil)

// NewStore creates a Store. A nil client gets an otelhttp transport traced
// with tp.
func NewStore(cfg Config, hc *http.Client, tp trace.TracerProvider) *Store {
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if hc == nil {
		var opts []otelhttp.Option
		if tp != nil {
			opts = append(opts, otelhttp.WithTracerProvider(tp))
		}
		hc = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport, opts...),
			Timeout:   30 * time.Second,
		}
	}
	return &Store{cfg: cfg, http: hc, now: time.Now}
}

// Key names the object for a proof: email, upload time in milliseconds and
// the original file name.
func Key(email string, at time.Time, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" {
		name = "proof.jpg"
	}
	return fmt.Sprintf("%s-%d-%s", email, at.UnixMilli(), name)
}

// PublicURL is the public download URL of key.
func (s *Store) PublicURL(key string) string {
	return s.cfg.BaseURL + "/storage/v1/object/public/" + url.PathEscape(s.cfg.Bucket) + "/" + url.PathEscape(key)
}

// Upload compresses images and stores the proof. Files that are not
// decodable images are stored unchanged.
func (s *Store) Upload(ctx context.Context, p checkout.Proof) (string, error) {
	data, contentType := p.Data, p.ContentType
	if compressed, err := Compress(p.Data); err == nil {
		data, contentType = compressed, "image/jpeg"
	} else {
		zctx.From(ctx).Debug("Proof is not a compressible image, storing as is",
			zap.String("filename", p.Filename), zap.Error(err))
	}
	if contentType == "" {
		contentType = http.DetectContentType(p.Data)
	}

	key := Key(p.Email, s.now(), p.Filename)
	u := s.cfg.BaseURL + "/storage/v1/object/" + url.PathEscape(s.cfg.Bucket) + "/" + url.PathEscape(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.ServiceKey)
	req.Header.Set("apikey", s.cfg.ServiceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", "max-age=3600")
	req.Header.Set("x-upsert", "false")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "upload")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.Wrapf(ErrUploadFailed, "status %d", resp.StatusCode)
	}

	zctx.From(ctx).Info("Proof uploaded", zap.String("key", key), zap.Int("bytes", len(data)))
	return s.PublicURL(key), nil
}
