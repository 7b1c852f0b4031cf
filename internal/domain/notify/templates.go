package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/eubiosis/checkout/internal/domain/pricing"
)

//go:embed templates/*.html
var templateFS embed.FS

const notAvailable = "N/A"

type templates struct {
	byScenario map[Scenario]*template.Template
}

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"rand":  func(d decimal.Decimal) string { return d.String() },
	"bottles": func(q int) string {
		if q == 1 {
			return "1 bottle"
		}
		return fmt.Sprintf("%d bottles", q)
	},
}

func parseTemplates() (*templates, error) {
	t := &templates{byScenario: make(map[Scenario]*template.Template, len(Scenarios))}
	for _, sc := range Scenarios {
		tmpl, err := template.New(string(sc)).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+string(sc)+".html",
		)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", sc)
		}
		t.byScenario[sc] = tmpl
	}
	return t, nil
}

func (t *templates) render(sc Scenario, v view) (string, error) {
	tmpl, ok := t.byScenario[sc]
	if !ok {
		return "", errors.Errorf("no template for scenario %q", sc)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", v); err != nil {
		return "", errors.Wrapf(err, "render %s", sc)
	}
	return buf.String(), nil
}

// view is the template data of one email.
type view struct {
	Accent     string
	Heading    string
	Subheading string
	TotalLabel string
	SiteURL    string

	CustomerName  string
	CustomerEmail string
	Phone         string
	Address       string
	City          string
	PostalCode    string

	Size                   pricing.Size
	Quantity               int
	Total                  decimal.Decimal
	IrresistibleOffer      bool
	IrresistibleOfferPrice decimal.Decimal

	ProofURL string
}

const (
	accentPending   = "#b8860b"
	accentPurchased = "#2e7d32"
	accentProof     = "#1565c0"
)

func newView(sc Scenario, s Summary, proofURL, siteURL string) view {
	v := view{
		SiteURL:                siteURL,
		CustomerName:           orNA(s.CustomerName),
		CustomerEmail:          orNA(s.CustomerEmail),
		Phone:                  orNA(s.Phone),
		Address:                orNA(s.Address),
		City:                   orNA(s.City),
		PostalCode:             orNA(s.PostalCode),
		Size:                   s.Size,
		Quantity:               s.Quantity,
		Total:                  s.Total,
		IrresistibleOffer:      s.IrresistibleOffer,
		IrresistibleOfferPrice: pricing.IrresistibleOfferPrice,
		ProofURL:               proofURL,
		TotalLabel:             "Total",
	}

	switch sc {
	case ScenarioAdminPending:
		v.Accent, v.Heading, v.Subheading = accentPending, "Almost Buying!", "A customer is at PayFast checkout"
	case ScenarioCustomerPending:
		v.Accent, v.Heading, v.Subheading = accentPending, "Order Confirmation", "Payment pending"
		v.TotalLabel = "Total Amount"
	case ScenarioAdminPurchased:
		v.Accent, v.Heading, v.Subheading = accentPurchased, "Purchase Confirmed!", "New order ready for dispatch"
		v.TotalLabel = "Total Paid"
	case ScenarioCustomerPurchased:
		v.Accent, v.Heading, v.Subheading = accentPurchased, "Thank You for Your Order!", "Your payment was successful"
		v.TotalLabel = "Total Paid"
	case ScenarioAdminEFTProof:
		v.Accent, v.Heading, v.Subheading = accentProof, "EFT Proof Received", "Bank transfer awaiting verification"
		v.TotalLabel = "Order Total"
	}
	return v
}

// Subject returns the subject line of a scenario.
func Subject(sc Scenario, s Summary) string {
	name := orNA(s.CustomerName)
	total := s.Total.StringFixed(2)
	switch sc {
	case ScenarioAdminPending:
		return fmt.Sprintf("🔔 Almost Buying! %s is at PayFast checkout - R%s", name, total)
	case ScenarioCustomerPending:
		return "Order Confirmation - Payment Pending"
	case ScenarioAdminPurchased:
		return fmt.Sprintf("✅ Purchase Confirmed! %s bought %d bottle(s) - R%s", name, s.Quantity, total)
	case ScenarioCustomerPurchased:
		return "✅ Purchase Confirmed - Your Eubiosis Order"
	case ScenarioAdminEFTProof:
		return fmt.Sprintf("💳 EFT Proof Received - %s - R%s", name, total)
	default:
		return "Eubiosis"
	}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}
