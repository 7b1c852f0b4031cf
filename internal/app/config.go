package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (EUBIOSIS_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (EUBIOSIS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL      string `default:"redis://localhost:6379/0" usage:"Redis URL for sessions and carts (EUBIOSIS_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	PublicBaseURL string `default:"https://www.eubiosis.pro" usage:"Storefront URL linked from emails" flag:"public-base-url"`
	Pricing       PricingConfig
	Session       SessionConfig
	Brevo         BrevoConfig
	Storage       StorageConfig
	PayFast       PayFastConfig
	WhatsApp      WhatsAppConfig
	Admin         AdminConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// PricingConfig holds the configurable discounts.
type PricingConfig struct {
	BundleDiscount      int `default:"15" usage:"Bundle discount percent when none is given"`
	LimitedDealDiscount int `default:"20" usage:"Funnel upsell discount percent"`
}

// SessionConfig controls how long shopper state lives in Redis.
type SessionConfig struct {
	CheckoutTTL time.Duration `default:"24h" usage:"Checkout session lifetime"`
	CartTTL     time.Duration `default:"720h" usage:"Cart lifetime"`
}

// BrevoConfig configures transactional email.
type BrevoConfig struct {
	APIKey      string        `usage:"Brevo API key" flag:"brevo-api-key"`
	URL         string        `default:"https://api.brevo.com/v3/smtp/email" usage:"Brevo send endpoint"`
	SenderName  string        `default:"Eubiosis" usage:"From name"`
	SenderEmail string        `default:"orders@eubiosis.pro" usage:"From address"`
	AdminEmail  string        `default:"admin@eubiosis.pro" usage:"Back-office recipient"`
	AdminName   string        `default:"Eubiosis Admin" usage:"Back-office recipient name"`
	Timeout     time.Duration `default:"10s" usage:"Send timeout"`
}

// StorageConfig configures proof-of-payment storage.
type StorageConfig struct {
	URL        string `usage:"Supabase project URL" flag:"storage-url"`
	ServiceKey string `usage:"Supabase service role key" flag:"storage-key"`
	Bucket     string `default:"eft imgs" usage:"Bucket for transfer proofs"`
	MaxProofMB int64  `default:"10" usage:"Maximum proof upload size in megabytes"`
}

// PayFastConfig configures the payment gateway redirect.
type PayFastConfig struct {
	MerchantID    string        `usage:"PayFast merchant ID" flag:"payfast-merchant-id"`
	MerchantKey   string        `usage:"PayFast merchant key" flag:"payfast-merchant-key"`
	Passphrase    string        `usage:"PayFast signature passphrase"`
	ProcessURL    string        `default:"https://www.payfast.co.za/eng/process" usage:"PayFast process endpoint"`
	ReturnURL     string        `default:"https://www.eubiosis.pro/payment/success" usage:"Return URL after payment"`
	CancelURL     string        `default:"https://www.eubiosis.pro/payment/cancel" usage:"Return URL after cancellation"`
	NotifyURL     string        `default:"https://www.eubiosis.pro/api/payfast/notify" usage:"Payment notification URL"`
	RedirectDelay time.Duration `default:"2s" usage:"Delay before the redirect page submits the form"`
}

// WhatsAppConfig configures the seller contact links.
type WhatsAppConfig struct {
	SellerNumber string `default:"27818909814" usage:"Seller WhatsApp number in international format"`
}

// AdminConfig configures back-office API keys.
type AdminConfig struct {
	// APIKeys are "name:hash" entries, hash being the hex HMAC-SHA256 of the
	// key under APIKeyPepper.
	APIKeys      []string `usage:"Back-office API key hashes" flag:"admin-api-keys"`
	APIKeyPepper string   `usage:"HMAC pepper for API key hashing (EUBIOSIS_ADMIN_API_KEY_PEPPER)" flag:"api-key-pepper"`
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "EUBIOSIS",
		Files:     []string{"config.yaml", "/etc/eubiosis/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided variables with standard names
// (DATABASE_URL, REDIS_URL, PORT) onto the configuration.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	if c.DatabaseURL == "" {
		c.DatabaseURL = getenv("DATABASE_URL")
	}
	if v := getenv("REDIS_URL"); v != "" && getenv("EUBIOSIS_REDIS_URL") == "" {
		c.RedisURL = v
	}
	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set EUBIOSIS_DATABASE_URL or DATABASE_URL")
	}
	if c.RedisURL == "" {
		return errors.New("redis URL is required: set EUBIOSIS_REDIS_URL or REDIS_URL")
	}
	if len(c.Admin.APIKeys) > 0 && c.Admin.APIKeyPepper == "" {
		return errors.New("admin API keys need EUBIOSIS_ADMIN_API_KEY_PEPPER")
	}
	return nil
}
