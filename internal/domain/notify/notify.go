// Package notify renders and sends the transactional emails of a checkout:
// order notifications to the business and the shopper, and the admin alert
// for an uploaded bank-transfer proof.
package notify

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/eubiosis/checkout/internal/domain/pricing"
	"github.com/eubiosis/checkout/internal/effect"
)

// EmailType selects the order email pair.
type EmailType string

const (
	// EmailPending is sent when the shopper is handed to the payment gateway.
	EmailPending EmailType = "pending"
	// EmailPurchased is sent once payment is confirmed.
	EmailPurchased EmailType = "purchased"
)

// ErrUnknownEmailType is returned for anything but pending or purchased.
var ErrUnknownEmailType = errors.New("unknown email type")

// ParseEmailType converts s to an EmailType.
func ParseEmailType(s string) (EmailType, error) {
	switch EmailType(s) {
	case EmailPending, EmailPurchased:
		return EmailType(s), nil
	default:
		return "", errors.Wrapf(ErrUnknownEmailType, "%q", s)
	}
}

// Scenario is one of the fixed email templates.
type Scenario string

const (
	ScenarioAdminPending      Scenario = "admin-pending"
	ScenarioCustomerPending   Scenario = "customer-pending"
	ScenarioAdminPurchased    Scenario = "admin-purchased"
	ScenarioCustomerPurchased Scenario = "customer-purchased"
	ScenarioAdminEFTProof     Scenario = "admin-eft-proof"
)

// Scenarios lists every template.
var Scenarios = []Scenario{
	ScenarioAdminPending,
	ScenarioCustomerPending,
	ScenarioAdminPurchased,
	ScenarioCustomerPurchased,
	ScenarioAdminEFTProof,
}

// Recipient is an addressee.
type Recipient struct {
	Email string
	Name  string
}

// Message is a rendered email.
type Message struct {
	To      []Recipient
	Subject string
	HTML    string
}

// Sender delivers a message and returns the provider's message ID.
type Sender interface {
	Send(ctx context.Context, m Message) (string, error)
}

// Summary is the order data shown in the emails.
type Summary struct {
	CustomerName  string
	CustomerEmail string
	Phone         string
	Address       string
	City          string
	PostalCode    string

	Size              pricing.Size
	Quantity          int
	Total             decimal.Decimal
	IrresistibleOffer bool
}

// ProofSummary is Summary plus the public URL of the uploaded proof.
type ProofSummary struct {
	Summary
	ProofURL string
}

// Config configures a Dispatcher.
type Config struct {
	Admin   Recipient
	SiteURL string
}

// Dispatcher renders the templates and hands messages to a Sender. Every
// send goes through the effect seam, so failures are logged and counted but
// never returned.
type Dispatcher struct {
	sender    Sender
	rec       *effect.Recorder
	cfg       Config
	templates *templates
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(sender Sender, rec *effect.Recorder, cfg Config) (*Dispatcher, error) {
	t, err := parseTemplates()
	if err != nil {
		return nil, errors.Wrap(err, "parse email templates")
	}
	if rec == nil {
		rec = effect.Nop()
	}
	if cfg.SiteURL == "" {
		cfg.SiteURL = "https://www.eubiosis.pro"
	}
	return &Dispatcher{sender: sender, rec: rec, cfg: cfg, templates: t}, nil
}

// OrderEmails sends the admin email and then the customer email for typ.
// The customer email is skipped when the summary has no address.
func (d *Dispatcher) OrderEmails(ctx context.Context, typ EmailType, s Summary) []effect.Result[string] {
	var admin, customer Scenario
	switch typ {
	case EmailPurchased:
		admin, customer = ScenarioAdminPurchased, ScenarioCustomerPurchased
	default:
		admin, customer = ScenarioAdminPending, ScenarioCustomerPending
	}

	results := []effect.Result[string]{
		d.send(ctx, admin, []Recipient{d.cfg.Admin}, s, ""),
	}
	if strings.TrimSpace(s.CustomerEmail) != "" {
		to := []Recipient{{Email: s.CustomerEmail, Name: s.CustomerName}}
		results = append(results, d.send(ctx, customer, to, s, ""))
	}
	return results
}

// EFTProof sends the admin alert for an uploaded transfer proof.
func (d *Dispatcher) EFTProof(ctx context.Context, s ProofSummary) effect.Result[string] {
	return d.send(ctx, ScenarioAdminEFTProof, []Recipient{d.cfg.Admin}, s.Summary, s.ProofURL)
}

// Render produces the message for a scenario without sending it.
func (d *Dispatcher) Render(sc Scenario, s Summary, proofURL string) (Message, error) {
	html, err := d.templates.render(sc, newView(sc, s, proofURL, d.cfg.SiteURL))
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: Subject(sc, s), HTML: html}, nil
}

func (d *Dispatcher) send(ctx context.Context, sc Scenario, to []Recipient, s Summary, proofURL string) effect.Result[string] {
	return effect.Run(ctx, d.rec, "email."+string(sc), func(ctx context.Context) (string, error) {
		m, err := d.Render(sc, s, proofURL)
		if err != nil {
			return "", err
		}
		m.To = to
		return d.sender.Send(ctx, m)
	})
}

// AnySent reports whether at least one send in results succeeded.
func AnySent(results []effect.Result[string]) bool {
	for _, r := range results {
		if r.OK() {
			return true
		}
	}
	return false
}
