// Package subscriber captures newsletter sign-ups from the storefront
// pop-ups.
package subscriber

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// ErrInvalidEmail is returned for addresses that fail validation.
var ErrInvalidEmail = errors.New("please enter a valid email address")

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Subscriber is a newsletter sign-up.
type Subscriber struct {
	Email     string
	Source    string
	CreatedAt time.Time
}

// Repository stores subscribers.
type Repository interface {
	// Insert stores s unless the email is already present and reports
	// whether a row was created.
	Insert(ctx context.Context, s Subscriber) (bool, error)
	Exists(ctx context.Context, email string) (bool, error)
	// Emails calls fn for every stored address.
	Emails(ctx context.Context, fn func(email string) error) error
}

const (
	filterCapacity = 1_000_000
	filterFPR      = 0.001
	defaultSource  = "unknown"
)

// Service handles sign-ups. A bloom filter of known addresses answers "new
// address" without a lookup; only possible duplicates hit the repository
// before the insert.
type Service struct {
	repo Repository
	now  func() time.Time

	mu     sync.Mutex
	filter *bloom.BloomFilter
}

// NewService creates a Service with an empty filter.
func NewService(repo Repository) *Service {
	return &Service{
		repo:   repo,
		now:    time.Now,
		filter: bloom.NewWithEstimates(filterCapacity, filterFPR),
	}
}

// Warm loads every stored address into the filter.
func (s *Service) Warm(ctx context.Context) error {
	var n int
	err := s.repo.Emails(ctx, func(email string) error {
		s.mu.Lock()
		s.filter.AddString(email)
		s.mu.Unlock()
		n++
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "warm subscriber filter")
	}
	zctx.From(ctx).Info("Subscriber filter warmed", zap.Int("emails", n))
	return nil
}

// Normalize trims and lower-cases an address.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Valid reports whether email looks like an address.
func Valid(email string) bool {
	return emailPattern.MatchString(email)
}

// Subscribe records a sign-up. It reports false, without error, when the
// address was already subscribed.
func (s *Service) Subscribe(ctx context.Context, email, source string) (bool, error) {
	email = Normalize(email)
	if !Valid(email) {
		return false, ErrInvalidEmail
	}
	if source == "" {
		source = defaultSource
	}

	s.mu.Lock()
	maybeKnown := s.filter.TestString(email)
	s.mu.Unlock()

	if maybeKnown {
		exists, err := s.repo.Exists(ctx, email)
		if err != nil {
			return false, errors.Wrap(err, "check subscriber")
		}
		if exists {
			return false, nil
		}
	}

	created, err := s.repo.Insert(ctx, Subscriber{Email: email, Source: source, CreatedAt: s.now()})
	if err != nil {
		return false, errors.Wrap(err, "insert subscriber")
	}

	s.mu.Lock()
	s.filter.AddString(email)
	s.mu.Unlock()

	if created {
		zctx.From(ctx).Info("Subscribed", zap.String("source", source))
	}
	return created, nil
}
