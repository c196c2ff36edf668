package nowpayments

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
)

// SignatureHeader carries the IPN HMAC on callback requests.
const SignatureHeader = "x-nowpayments-sig"

// IPNPayload is the callback body NowPayments posts on payment updates.
type IPNPayload struct {
	PaymentID     json.Number     `json:"payment_id"`
	PaymentStatus string          `json:"payment_status"`
	PayAddress    string          `json:"pay_address"`
	PriceAmount   decimal.Decimal `json:"price_amount"`
	PriceCurrency string          `json:"price_currency"`
	PayAmount     decimal.Decimal `json:"pay_amount"`
	PayCurrency   string          `json:"pay_currency"`
	OrderID       string          `json:"order_id"`
	InvoiceID     json.Number     `json:"invoice_id"`
}

// ParseIPN decodes the raw callback body.
func ParseIPN(raw []byte) (*IPNPayload, error) {
	var payload IPNPayload
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeMalformedPayload, err, "decode ipn payload")
	}
	if payload.PaymentID.String() == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMalformedPayload, "ipn payload missing payment_id")
	}
	if strings.TrimSpace(payload.PaymentStatus) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMalformedPayload, "ipn payload missing payment_status")
	}
	return &payload, nil
}

// VerifyIPNSignature checks the HMAC-SHA512 signature NowPayments computes over
// the callback body with its keys sorted alphabetically.
func VerifyIPNSignature(raw []byte, signature, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return pkgerrors.New(pkgerrors.CodeDependency, "ipn secret not configured")
	}
	if strings.TrimSpace(signature) == "" {
		return pkgerrors.New(pkgerrors.CodeAuthenticationFailed, "missing ipn signature")
	}

	canonical, err := canonicalJSON(raw)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeMalformedPayload, err, "canonicalize ipn payload")
	}

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(canonical)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature)))) {
		return pkgerrors.New(pkgerrors.CodeAuthenticationFailed, "invalid ipn signature")
	}
	return nil
}

// canonicalJSON re-encodes the payload with sorted keys, preserving number
// formatting so the digest matches the provider's.
func canonicalJSON(raw []byte) ([]byte, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var decoded map[string]any
	if err := decoder.Decode(&decoded); err != nil {
		return nil, err
	}
	return json.Marshal(decoded)
}
