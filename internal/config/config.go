package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds environment-driven configuration. It is read once at process
// start; there is no hot reload.
type Config struct {
	Addr        string
	Env         string
	DatabaseURL string
	JWTSecret   string
	CORSOrigins string

	AdminEmail        string
	AdminPasswordHash string

	RazorpayKeyID     string
	RazorpayKeySecret string
	Currency          string

	UPIID             string
	BankName          string
	BankAccountName   string
	BankAccountNumber string
	BankIFSC          string

	RelayURL   string
	RelayToken string
	AlertPhone string

	S3Bucket        string
	S3PublicBaseURL string

	ShippingFee       decimal.Decimal
	LowStockThreshold int
}

// Load reads a .env file when present and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:              getenv("SHOP_ADDR", ":8080"),
		Env:               getenv("APP_ENV", "development"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		CORSOrigins:       getenv("CORS_ORIGINS", "*"),
		AdminEmail:        strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		RazorpayKeyID:     os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
		Currency:          getenv("PAYMENT_CURRENCY", "INR"),
		UPIID:             os.Getenv("UPI_ID"),
		BankName:          os.Getenv("BANK_NAME"),
		BankAccountName:   os.Getenv("BANK_ACCOUNT_NAME"),
		BankAccountNumber: os.Getenv("BANK_ACCOUNT_NUMBER"),
		BankIFSC:          os.Getenv("BANK_IFSC"),
		RelayURL:          os.Getenv("NOTIFY_RELAY_URL"),
		RelayToken:        os.Getenv("NOTIFY_RELAY_TOKEN"),
		AlertPhone:        os.Getenv("ALERT_PHONE"),
		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),
		ShippingFee:       getDecimal("SHIPPING_FEE", decimal.NewFromInt(50)),
		LowStockThreshold: getInt("LOW_STOCK_THRESHOLD", 5),
	}
}

// Production reports whether APP_ENV is "production".
func (c Config) Production() bool {
	return c.Env == "production"
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func getDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return fallback
	}
	return d
}
