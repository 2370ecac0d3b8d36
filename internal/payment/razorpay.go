package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultRazorpayURL = "https://api.razorpay.com"

// Razorpay creates an order on the Razorpay API and verifies the checkout
// signature it later returns.
type Razorpay struct {
	keyID     string
	keySecret string
	client    *resty.Client
}

func NewRazorpay(keyID, keySecret, baseURL string) *Razorpay {
	if baseURL == "" {
		baseURL = DefaultRazorpayURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetBasicAuth(keyID, keySecret).
		SetHeader("Accept", "application/json")
	return &Razorpay{keyID: keyID, keySecret: keySecret, client: client}
}

type razorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (r *Razorpay) Initiate(ctx context.Context, req Request) (Intent, error) {
	amount := minorUnits(req.Amount)
	var created razorpayOrder
	var failure razorpayError
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"amount":   amount,
			"currency": req.Currency,
			"receipt":  req.OrderID,
			"notes": map[string]string{
				"order_id": req.OrderID,
				"phone":    req.Phone,
			},
		}).
		SetResult(&created).
		SetError(&failure).
		Post("/v1/orders")
	if err != nil {
		return Intent{}, fmt.Errorf("razorpay create order: %w", err)
	}
	if resp.IsError() {
		return Intent{}, fmt.Errorf("razorpay create order failed with status %d: %s", resp.StatusCode(), failure.Error.Description)
	}
	if created.ID == "" {
		return Intent{}, fmt.Errorf("razorpay create order: empty order id in response")
	}
	return Intent{
		Provider:        "razorpay",
		Method:          MethodRazorpay,
		ProviderOrderID: created.ID,
		KeyID:           r.keyID,
		Amount:          req.Amount,
		AmountMinor:     amount,
		Currency:        req.Currency,
		Description:     req.Description,
		Prefill:         Prefill{Name: req.Name, Email: req.Email, Phone: req.Phone},
	}, nil
}

// Confirm checks the signature over the order id we created and the payment
// id returned to the browser. The payment id becomes the transaction ref.
func (r *Razorpay) Confirm(_ context.Context, in Intent, conf Confirmation) (string, error) {
	if conf.PaymentID == "" || conf.Signature == "" {
		return "", fmt.Errorf("%w: missing payment id or signature", ErrVerification)
	}
	if conf.ProviderOrderID != "" && conf.ProviderOrderID != in.ProviderOrderID {
		return "", fmt.Errorf("%w: order id mismatch", ErrVerification)
	}
	expected := Sign(r.keySecret, in.ProviderOrderID, conf.PaymentID)
	if !hmac.Equal([]byte(expected), []byte(conf.Signature)) {
		return "", fmt.Errorf("%w: signature mismatch", ErrVerification)
	}
	return conf.PaymentID, nil
}

// Sign computes the Razorpay checkout signature for an order/payment pair.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
