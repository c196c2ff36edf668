package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/telestars/premium-backend/internal/payments"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
)

type stubCallbackService struct {
	handleFn func(ctx context.Context, rawPayload []byte, signature string) (*payments.CallbackResult, error)
}

func (s stubCallbackService) HandleCallback(ctx context.Context, rawPayload []byte, signature string) (*payments.CallbackResult, error) {
	return s.handleFn(ctx, rawPayload, signature)
}

func TestNowPaymentsIPNForwardsPayloadAndSignature(t *testing.T) {
	payload := `{"payment_id":123,"payment_status":"finished","order_id":"TS-20260101-AAAA"}`
	svc := stubCallbackService{
		handleFn: func(ctx context.Context, rawPayload []byte, signature string) (*payments.CallbackResult, error) {
			if string(rawPayload) != payload {
				t.Fatalf("unexpected payload %s", rawPayload)
			}
			if signature != "deadbeef" {
				t.Fatalf("unexpected signature %q", signature)
			}
			return &payments.CallbackResult{Outcome: payments.OutcomeConfirmed}, nil
		},
	}

	handler := NowPaymentsIPN(svc, nil)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/nowpayments/ipn", strings.NewReader(payload))
	req.Header.Set("x-nowpayments-sig", "deadbeef")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["outcome"] != payments.OutcomeConfirmed {
		t.Fatalf("unexpected outcome %q", envelope.Data["outcome"])
	}
}

func TestNowPaymentsIPNBadSignatureIsNotRetryable(t *testing.T) {
	svc := stubCallbackService{
		handleFn: func(ctx context.Context, rawPayload []byte, signature string) (*payments.CallbackResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeAuthenticationFailed, "signature mismatch")
		},
	}

	handler := NowPaymentsIPN(svc, nil)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/nowpayments/ipn", strings.NewReader(`{}`))
	req.Header.Set("x-nowpayments-sig", "wrong")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature got %d", resp.Code)
	}
}

func TestNowPaymentsIPNUnknownTransactionIsRetryable(t *testing.T) {
	svc := stubCallbackService{
		handleFn: func(ctx context.Context, rawPayload []byte, signature string) (*payments.CallbackResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeTransactionNotFound, "no transaction for payment")
		},
	}

	handler := NowPaymentsIPN(svc, nil)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/nowpayments/ipn", strings.NewReader(`{}`))
	req.Header.Set("x-nowpayments-sig", "deadbeef")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown transaction got %d", resp.Code)
	}
}

func TestNowPaymentsIPNMalformedPayload(t *testing.T) {
	svc := stubCallbackService{
		handleFn: func(ctx context.Context, rawPayload []byte, signature string) (*payments.CallbackResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeMalformedPayload, "unparseable payload")
		},
	}

	handler := NowPaymentsIPN(svc, nil)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/nowpayments/ipn", strings.NewReader(`not-json`))
	req.Header.Set("x-nowpayments-sig", "deadbeef")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed payload got %d", resp.Code)
	}
}
