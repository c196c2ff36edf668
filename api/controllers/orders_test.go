package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/telestars/premium-backend/pkg/db/models"
	"github.com/telestars/premium-backend/pkg/enums"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
)

type stubOrderReader struct {
	getFn func(ctx context.Context, orderNumber string) (*models.Order, error)
}

func (s stubOrderReader) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return s.getFn(ctx, orderNumber)
}

func TestCustomerOrderStatusHidesInternalStates(t *testing.T) {
	svc := stubOrderReader{
		getFn: func(ctx context.Context, orderNumber string) (*models.Order, error) {
			return testOrder(orderNumber, enums.OrderStatusSupplierProcessing), nil
		},
	}

	handler := CustomerOrderStatus(svc, nil)
	req := withOrderNumber(httptest.NewRequest(http.MethodGet, "/", nil), "TS-20260101-AAAA")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data customerOrderStatus `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.StatusText != "Payment received. Your order is being processed." {
		t.Fatalf("unexpected status text %q", envelope.Data.StatusText)
	}
	if envelope.Data.ActivationLink != nil {
		t.Fatal("activation link must not leak before approval")
	}
}

func TestCustomerOrderStatusExposesLinkWhenApproved(t *testing.T) {
	link := "https://t.me/premium/abc"
	svc := stubOrderReader{
		getFn: func(ctx context.Context, orderNumber string) (*models.Order, error) {
			order := testOrder(orderNumber, enums.OrderStatusApproved)
			order.ActivationLink = &link
			return order, nil
		},
	}

	handler := CustomerOrderStatus(svc, nil)
	req := withOrderNumber(httptest.NewRequest(http.MethodGet, "/", nil), "TS-20260101-BBBB")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data customerOrderStatus `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ActivationLink == nil || *envelope.Data.ActivationLink != link {
		t.Fatalf("expected activation link got %v", envelope.Data.ActivationLink)
	}
}

func TestCustomerOrderStatusShowsDeadlineWhileAwaitingPayment(t *testing.T) {
	deadline := time.Now().Add(30 * time.Minute).UTC().Truncate(time.Second)
	svc := stubOrderReader{
		getFn: func(ctx context.Context, orderNumber string) (*models.Order, error) {
			order := testOrder(orderNumber, enums.OrderStatusAwaitingPayment)
			order.ExpiresAt = &deadline
			return order, nil
		},
	}

	handler := CustomerOrderStatus(svc, nil)
	req := withOrderNumber(httptest.NewRequest(http.MethodGet, "/", nil), "TS-20260101-CCCC")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	var envelope struct {
		Data customerOrderStatus `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ExpiresAt == nil || !envelope.Data.ExpiresAt.Equal(deadline) {
		t.Fatalf("expected payment deadline got %v", envelope.Data.ExpiresAt)
	}
}

func TestCustomerOrderStatusUnknownOrder(t *testing.T) {
	svc := stubOrderReader{
		getFn: func(ctx context.Context, orderNumber string) (*models.Order, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		},
	}

	handler := CustomerOrderStatus(svc, nil)
	req := withOrderNumber(httptest.NewRequest(http.MethodGet, "/", nil), "TS-20260101-ZZZZ")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
