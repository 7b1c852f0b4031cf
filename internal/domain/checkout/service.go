package checkout

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/eubiosis/checkout/internal/domain/notify"
	"github.com/eubiosis/checkout/internal/domain/order"
	"github.com/eubiosis/checkout/internal/domain/pricing"
	"github.com/eubiosis/checkout/internal/effect"
	"github.com/eubiosis/checkout/internal/payfast"
)

// SessionStore persists checkout sessions.
type SessionStore interface {
	// Get returns ErrSessionNotFound for unknown or expired sessions.
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
}

// Notifier sends the checkout emails.
type Notifier interface {
	OrderEmails(ctx context.Context, typ notify.EmailType, s notify.Summary) []effect.Result[string]
	EFTProof(ctx context.Context, s notify.ProofSummary) effect.Result[string]
}

// Proof is an uploaded proof-of-payment image.
type Proof struct {
	Email       string
	Filename    string
	ContentType string
	Data        []byte
}

// ProofStore stores proofs and returns their public URL.
type ProofStore interface {
	Upload(ctx context.Context, p Proof) (string, error)
}

// Gateway builds the signed payment form.
type Gateway interface {
	Build(p payfast.Payment) payfast.Form
}

// Deps are the collaborators of a Service.
type Deps struct {
	Sessions SessionStore
	Orders   order.Repository
	Notifier Notifier
	Proofs   ProofStore
	Gateway  Gateway
	Recorder *effect.Recorder
	Meter    metric.MeterProvider
}

// Config tunes a Service.
type Config struct {
	// DefaultBundleDiscountPercent applies to bundles started without an
	// explicit discount.
	DefaultBundleDiscountPercent int
	// LimitedDealDiscountPercent is the funnel upsell discount. These two
	// are the only bundle discounts a checkout may carry.
	LimitedDealDiscountPercent int
	SellerNumber               string
}

// Service runs checkouts.
type Service struct {
	sessions SessionStore
	orders   order.Repository
	notifier Notifier
	proofs   ProofStore
	gateway  Gateway
	rec      *effect.Recorder

	completions metric.Int64Counter
	cfg         Config
	locks       [64]sync.Mutex

	now   func() time.Time
	newID func() string
}

// NewService creates a Service.
func NewService(deps Deps, cfg Config) (*Service, error) {
	if cfg.DefaultBundleDiscountPercent <= 0 {
		cfg.DefaultBundleDiscountPercent = pricing.DefaultBundleDiscountPercent
	}
	if cfg.LimitedDealDiscountPercent <= 0 {
		cfg.LimitedDealDiscountPercent = pricing.LimitedDealDiscountPercent
	}
	if cfg.SellerNumber == "" {
		cfg.SellerNumber = DefaultSellerNumber
	}
	rec := deps.Recorder
	if rec == nil {
		rec = effect.Nop()
	}
	mp := deps.Meter
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	completions, err := mp.Meter("github.com/eubiosis/checkout/internal/domain/checkout").
		Int64Counter("checkout.completions", metric.WithDescription("Completed checkouts by payment method"))
	if err != nil {
		return nil, errors.Wrap(err, "create completions counter")
	}

	return &Service{
		sessions:    deps.Sessions,
		orders:      deps.Orders,
		notifier:    deps.Notifier,
		proofs:      deps.Proofs,
		gateway:     deps.Gateway,
		rec:         rec,
		completions: completions,
		cfg:         cfg,
		now:         time.Now,
		newID:       uuid.NewString,
	}, nil
}

// SellerNumber is the WhatsApp number for transfer enquiries.
func (s *Service) SellerNumber() string {
	return s.cfg.SellerNumber
}

// lock serializes mutations of one session within this process.
func (s *Service) lock(id string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	mu := &s.locks[h.Sum32()%uint32(len(s.locks))]
	mu.Lock()
	return mu.Unlock
}

// BundleDiscountOffered reports whether pct is a bundle discount the shop
// offers.
func (s *Service) BundleDiscountOffered(pct int) bool {
	return pct == s.cfg.DefaultBundleDiscountPercent || pct == s.cfg.LimitedDealDiscountPercent
}

// BundleDiscounts lists the offered bundle discounts.
func (s *Service) BundleDiscounts() []int {
	return []int{s.cfg.DefaultBundleDiscountPercent, s.cfg.LimitedDealDiscountPercent}
}

// priceDraft validates d and replaces every price it carries with the
// server-side value: the bundle discount must be one the shop offers and the
// one-time offer price always comes from the catalog.
func (s *Service) priceDraft(d order.Draft) (order.Draft, error) {
	if err := ValidateDraft(d); err != nil {
		return d, err
	}
	switch {
	case !d.Bundle:
		d.BundleDiscountPercent = 0
	case d.BundleDiscountPercent == 0:
		d.BundleDiscountPercent = s.cfg.DefaultBundleDiscountPercent
	case !s.BundleDiscountOffered(d.BundleDiscountPercent):
		return d, errors.Wrapf(ErrInvalidDiscount, "%d%%", d.BundleDiscountPercent)
	}
	d.OTOPrice = nil
	if offer, ok := pricing.FindOTOOffer(d.OTO); ok {
		price := offer.Price
		d.OTOPrice = &price
	}
	return d, nil
}

// StartRequest opens a checkout.
type StartRequest struct {
	Draft    order.Draft
	Province string
}

// Start validates the draft and creates a session at product review.
func (s *Service) Start(ctx context.Context, req StartRequest) (*Session, error) {
	d, err := s.priceDraft(req.Draft)
	if err != nil {
		return nil, err
	}

	sess := NewSession(s.newID(), d, s.now())
	if req.Province != "" {
		if err := sess.SetProvince(req.Province); err != nil {
			return nil, err
		}
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, errors.Wrap(err, "save session")
	}

	zctx.From(ctx).Info("Checkout started",
		zap.String("session_id", sess.ID),
		zap.String("size", string(d.Size)),
		zap.Int("quantity", d.Quantity),
		zap.Bool("bundle", d.Bundle),
	)
	return sess, nil
}

// Get returns a session.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.sessions.Get(ctx, id)
}

// mutate loads a session, applies fn and saves it when fn succeeds, so a
// failed transition never changes stored state.
func (s *Service) mutate(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	defer s.lock(id)()

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	sess.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, errors.Wrap(err, "save session")
	}
	return sess, nil
}

// UpdateCustomer replaces the customer details of a session.
func (s *Service) UpdateCustomer(ctx context.Context, id string, c order.Customer) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		return sess.UpdateCustomer(c)
	})
}

// SetProvince selects the delivery province.
func (s *Service) SetProvince(ctx context.Context, id, province string) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		return sess.SetProvince(province)
	})
}

// Continue advances product review to customer details, and customer
// details to the payment method modal.
func (s *Service) Continue(ctx context.Context, id string) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		if sess.Step == StepProductReview {
			return sess.Begin()
		}
		return sess.Continue()
	})
}

// AcceptIrresistibleOffer adds the extra bottle to the order.
func (s *Service) AcceptIrresistibleOffer(ctx context.Context, id string) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		return sess.AcceptIrresistibleOffer()
	})
}

// MarkSellerContacted records the WhatsApp contact and returns the link the
// shopper should open.
func (s *Service) MarkSellerContacted(ctx context.Context, id string) (*Session, string, error) {
	sess, err := s.mutate(ctx, id, func(sess *Session) error {
		return sess.MarkSellerContacted()
	})
	if err != nil {
		return nil, "", err
	}
	return sess, WhatsAppLinks(sess, s.cfg.SellerNumber).ContactSeller, nil
}

// SelectPaymentMethod records the payment method. For card payments with a
// known province the completion runs immediately and the form is returned.
func (s *Service) SelectPaymentMethod(ctx context.Context, id string, m order.PaymentMethod) (*Session, *payfast.Form, error) {
	defer s.lock(id)()

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	completeNow, err := sess.SelectPaymentMethod(m)
	if err != nil {
		return nil, nil, err
	}
	sess.UpdatedAt = s.now()

	zctx.From(ctx).Info("Payment method selected",
		zap.String("session_id", id),
		zap.String("method", string(m)),
		zap.Bool("complete_now", completeNow),
	)

	if !completeNow {
		if err := s.sessions.Save(ctx, sess); err != nil {
			return nil, nil, errors.Wrap(err, "save session")
		}
		return sess, nil, nil
	}

	form, err := s.completeGateway(ctx, sess)
	if err != nil {
		return nil, nil, err
	}
	return sess, &form, nil
}

// Pay runs the card completion. Paying an already completed card session
// returns the same form again without repeating any side effect.
func (s *Service) Pay(ctx context.Context, id string) (*Session, payfast.Form, error) {
	defer s.lock(id)()

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, payfast.Form{}, err
	}
	if sess.Completed() && sess.PaymentMethod == order.PaymentGateway {
		return sess, s.form(sess), nil
	}
	if err := sess.ReadyToPay(); err != nil {
		return nil, payfast.Form{}, err
	}

	form, err := s.completeGateway(ctx, sess)
	if err != nil {
		return nil, payfast.Form{}, err
	}
	return sess, form, nil
}

// Form returns the payment form of a completed card session.
func (s *Service) Form(ctx context.Context, id string) (payfast.Form, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return payfast.Form{}, err
	}
	if !sess.Completed() || sess.PaymentMethod != order.PaymentGateway {
		return payfast.Form{}, transitionError("redirect", sess.Step)
	}
	return s.form(sess), nil
}

// claim saves the session as claimed before any completion side effect
// runs. It reports false when an earlier attempt already claimed it, in
// which case the side effects must not run again.
func (s *Service) claim(ctx context.Context, sess *Session) (bool, error) {
	if sess.Claimed() {
		zctx.From(ctx).Warn("Completion side effects already ran, finishing without them",
			zap.String("session_id", sess.ID),
			zap.Time("claimed_at", *sess.ClaimedAt),
		)
		return false, nil
	}
	now := s.now()
	sess.Claim(now)
	sess.UpdatedAt = now
	if err := s.sessions.Save(ctx, sess); err != nil {
		return false, errors.Wrap(err, "save session")
	}
	return true, nil
}

// completeGateway runs, in order: pending emails, order persistence, form
// construction. Email and persistence failures are recorded and skipped.
// The side effects run at most once per session, even when saving the
// completed session fails and the shopper pays again.
func (s *Service) completeGateway(ctx context.Context, sess *Session) (payfast.Form, error) {
	lg := zctx.From(ctx).With(zap.String("session_id", sess.ID))
	if err := sess.ReadyToPay(); err != nil {
		return payfast.Form{}, err
	}

	orderID, mailSent := sess.OrderID, sess.MailSent
	fresh, err := s.claim(ctx, sess)
	if err != nil {
		return payfast.Form{}, err
	}
	if fresh {
		emails := s.notifier.OrderEmails(ctx, notify.EmailPending, summary(sess))
		mailSent = notify.AnySent(emails)
		orderID = s.persist(ctx, sess, order.PaymentGateway, mailSent)
	}

	now := s.now()
	if err := sess.CompleteGateway(orderID, mailSent, now); err != nil {
		return payfast.Form{}, err
	}
	sess.UpdatedAt = now
	form := s.form(sess)

	if err := s.sessions.Save(ctx, sess); err != nil {
		return payfast.Form{}, errors.Wrap(err, "save session")
	}

	s.completions.Add(ctx, 1, metric.WithAttributes(attribute.String("method", string(order.PaymentGateway))))
	lg.Info("Card checkout completed",
		zap.String("order_id", orderID),
		zap.Bool("mail_sent", mailSent),
		zap.String("total", sess.Totals().Total.StringFixed(2)),
	)
	return form, nil
}

// SubmitProof uploads the transfer proof and completes the session. Upload
// failure is returned; the admin email and order persistence are best
// effort.
func (s *Service) SubmitProof(ctx context.Context, id string, p Proof) (*Session, error) {
	defer s.lock(id)()

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sess.ReadyForProof(); err != nil {
		return nil, err
	}
	lg := zctx.From(ctx).With(zap.String("session_id", id))

	// A claimed session already holds its uploaded proof.
	url, orderID, mailSent := sess.ProofURL, sess.OrderID, sess.MailSent
	if !sess.Claimed() {
		if len(p.Data) == 0 {
			return nil, ErrProofRequired
		}
		if p.Email == "" {
			p.Email = sess.Customer.Email
		}
		if url, err = s.proofs.Upload(ctx, p); err != nil {
			lg.Error("Proof upload failed", zap.Error(err))
			return nil, errors.Wrap(ErrProofUpload, err.Error())
		}
		sess.ProofURL = url
	}

	fresh, err := s.claim(ctx, sess)
	if err != nil {
		return nil, err
	}
	if fresh {
		mail := s.notifier.EFTProof(ctx, notify.ProofSummary{Summary: summary(sess), ProofURL: url})
		mailSent = mail.OK()
		orderID = s.persist(ctx, sess, order.PaymentManualTransfer, mailSent)
	}

	now := s.now()
	if err := sess.CompleteManual(url, orderID, mailSent, now); err != nil {
		return nil, err
	}
	sess.UpdatedAt = now
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, errors.Wrap(err, "save session")
	}

	s.completions.Add(ctx, 1, metric.WithAttributes(attribute.String("method", string(order.PaymentManualTransfer))))
	lg.Info("Transfer checkout completed",
		zap.String("order_id", orderID),
		zap.String("proof_url", url),
	)
	return sess, nil
}

// persist stores the pending order once and returns its ID, or "" when
// persistence failed.
func (s *Service) persist(ctx context.Context, sess *Session, m order.PaymentMethod, mailSent bool) string {
	res := effect.Run(ctx, s.rec, "order.persist", func(ctx context.Context) (string, error) {
		o := order.New(sess.Draft, sess.Customer, m, mailSent)
		if err := s.orders.Create(ctx, o); err != nil {
			return "", err
		}
		return o.ID, nil
	})
	return res.Value
}

func (s *Service) form(sess *Session) payfast.Form {
	c := sess.Customer
	return s.gateway.Build(payfast.Payment{
		OrderID:   sess.OrderID,
		Amount:    sess.Totals().Total,
		ItemName:  payfast.ItemName(sess.Draft.Size, sess.Draft.Quantity, sess.Draft.IrresistibleOffer, c.Province),
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
	})
}

func summary(sess *Session) notify.Summary {
	c := sess.Customer
	return notify.Summary{
		CustomerName:      c.FullName(),
		CustomerEmail:     c.Email,
		Phone:             c.Phone,
		Address:           c.Address,
		City:              c.City,
		PostalCode:        c.PostalCode,
		Size:              sess.Draft.Size,
		Quantity:          sess.Draft.Quantity,
		Total:             sess.Totals().Total,
		IrresistibleOffer: sess.Draft.IrresistibleOffer,
	}
}
