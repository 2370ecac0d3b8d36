package payment

import (
	"context"
	"fmt"
	"strings"
)

const maxTransactionIDLen = 64

// Instructions are the payee details shown for manual transfers.
type Instructions struct {
	UPIID         string
	BankName      string
	AccountName   string
	AccountNumber string
	IFSC          string
}

// Manual is the UPI / bank transfer flow: the customer pays outside the
// shop and types in the transaction id (UTR) they received.
type Manual struct {
	info Instructions
}

func NewManual(info Instructions) *Manual {
	return &Manual{info: info}
}

func (m *Manual) Initiate(_ context.Context, req Request) (Intent, error) {
	in := Intent{
		Provider:    "manual",
		Method:      req.Method,
		Amount:      req.Amount,
		AmountMinor: minorUnits(req.Amount),
		Currency:    req.Currency,
		Description: req.Description,
		Prefill:     Prefill{Name: req.Name, Email: req.Email, Phone: req.Phone},
	}
	switch req.Method {
	case MethodUPI:
		in.Instructions = map[string]string{"upiId": m.info.UPIID}
	case MethodBank:
		in.Instructions = map[string]string{
			"bankName":      m.info.BankName,
			"accountName":   m.info.AccountName,
			"accountNumber": m.info.AccountNumber,
			"ifsc":          m.info.IFSC,
		}
	default:
		return Intent{}, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}
	return in, nil
}

// Confirm accepts any non-empty transaction id; the shop reconciles manual
// transfers against its bank statement.
func (m *Manual) Confirm(_ context.Context, _ Intent, conf Confirmation) (string, error) {
	id := strings.TrimSpace(conf.TransactionID)
	if id == "" {
		return "", fmt.Errorf("%w: transaction id is required", ErrVerification)
	}
	if len(id) > maxTransactionIDLen {
		return "", fmt.Errorf("%w: transaction id too long", ErrVerification)
	}
	return id, nil
}
