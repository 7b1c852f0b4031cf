package cart

import (
	"context"
	"hash/fnv"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/eubiosis/checkout/internal/domain/pricing"
)

// Service manages carts.
//
// Reads of the same cart are coalesced. Mutations are serialized per session
// and always read the stored cart themselves, so a coalesced read never
// feeds a write.
type Service struct {
	repo      Repository
	sfg       singleflight.Group
	locks     [64]sync.Mutex
	discounts []int
	now       func() time.Time
}

// NewService creates a Service. discounts are the bundle discounts a line may
// carry, pricing.DefaultBundleDiscountPercent and
// pricing.LimitedDealDiscountPercent when none are given.
func NewService(repo Repository, discounts ...int) *Service {
	if len(discounts) == 0 {
		discounts = []int{pricing.DefaultBundleDiscountPercent, pricing.LimitedDealDiscountPercent}
	}
	return &Service{repo: repo, discounts: discounts, now: time.Now}
}

func (s *Service) lock(sessionID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	mu := &s.locks[h.Sum32()%uint32(len(s.locks))]
	mu.Lock()
	return mu.Unlock
}

func (s *Service) load(ctx context.Context, sessionID string) (*Cart, error) {
	c, err := s.repo.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return &Cart{SessionID: sessionID}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// Get returns the cart of a session, empty when none was stored.
func (s *Service) Get(ctx context.Context, sessionID string) (*Cart, error) {
	v, err, _ := s.sfg.Do(sessionID, func() (any, error) {
		return s.load(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	// Callers may keep the cart; never share it between them.
	c := *v.(*Cart)
	c.Items = slices.Clone(c.Items)
	return &c, nil
}

func (s *Service) save(ctx context.Context, c *Cart) (*Cart, error) {
	c.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// Add puts item in the cart, replacing a line with the same product and
// size.
func (s *Service) Add(ctx context.Context, sessionID string, item Item) (*Cart, error) {
	if _, err := pricing.ParseSize(string(item.Size)); err != nil {
		return nil, errors.Wrap(ErrInvalidItem, err.Error())
	}
	if item.Quantity < 1 {
		return nil, errors.Wrapf(ErrInvalidItem, "quantity %d", item.Quantity)
	}
	switch {
	case !item.Bundle:
		item.BundleDiscountPercent = 0
	case item.BundleDiscountPercent != 0 && !slices.Contains(s.discounts, item.BundleDiscountPercent):
		return nil, errors.Wrapf(ErrInvalidItem, "bundle discount %d%% is not offered", item.BundleDiscountPercent)
	}
	if item.ProductID == "" {
		item.ProductID = DefaultProductID
	}
	if item.Name == "" {
		item.Name = "Eubiosis-S " + string(item.Size)
	}

	defer s.lock(sessionID)()
	c, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if i := slices.IndexFunc(c.Items, func(it Item) bool { return it.same(item.ProductID, item.Size) }); i >= 0 {
		c.Items[i] = item
	} else {
		c.Items = append(c.Items, item)
	}
	return s.save(ctx, c)
}

// Remove deletes the line for product and size.
func (s *Service) Remove(ctx context.Context, sessionID, productID string, size pricing.Size) (*Cart, error) {
	defer s.lock(sessionID)()
	c, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.Items = slices.DeleteFunc(c.Items, func(it Item) bool { return it.same(productID, size) })
	return s.save(ctx, c)
}

// UpdateQuantity sets the quantity of a line. A quantity of zero or less
// removes it.
func (s *Service) UpdateQuantity(ctx context.Context, sessionID, productID string, size pricing.Size, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return s.Remove(ctx, sessionID, productID, size)
	}
	defer s.lock(sessionID)()
	c, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for i := range c.Items {
		if c.Items[i].same(productID, size) {
			c.Items[i].Quantity = quantity
		}
	}
	return s.save(ctx, c)
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	defer s.lock(sessionID)()
	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return errors.Wrap(err, "delete cart")
	}
	return nil
}

// ItemCount returns the number of bottles in the cart.
func (s *Service) ItemCount(ctx context.Context, sessionID string) (int, error) {
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return c.ItemCount(), nil
}

// Total returns the cart total before delivery.
func (s *Service) Total(ctx context.Context, sessionID string) (decimal.Decimal, error) {
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return decimal.Zero, err
	}
	return c.Total(), nil
}
