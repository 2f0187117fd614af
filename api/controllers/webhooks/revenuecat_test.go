package webhooks

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/simmerworks/simmer-backend/internal/billing"
	revenuecatwebhook "github.com/simmerworks/simmer-backend/internal/webhooks/revenuecat"
	"github.com/simmerworks/simmer-backend/pkg/enums"
	"github.com/simmerworks/simmer-backend/pkg/types"
)

func TestRevenueCatWebhook_AppliedAck(t *testing.T) {
	userID := uuid.NewString()
	service := &fakeRevenueCatService{outcome: &billing.Outcome{
		UserID: userID,
		Status: enums.SubscriptionStatusTrialing,
	}}
	handler := RevenueCatWebhook(service, &fakeRevenueCatClient{secret: "rc_secret"}, nil, nil)

	rec := postRevenueCat(handler, `{"event":{"id":"evt_1","type":"INITIAL_PURCHASE"}}`, "Bearer rc_secret", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}

	var ack types.WebhookAck
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !ack.OK || ack.UserID != userID || ack.SubscriptionStatus != "trialing" {
		t.Fatalf("unexpected ack %+v", ack)
	}
}

func TestRevenueCatWebhook_SecretHeaderFallback(t *testing.T) {
	service := &fakeRevenueCatService{}
	handler := RevenueCatWebhook(service, &fakeRevenueCatClient{secret: "rc_secret"}, nil, nil)

	rec := postRevenueCat(handler, `{"event":{"id":"evt_2","type":"RENEWAL"}}`, "", "rc_secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 via X-RevenueCat-Secret, got %d", rec.Code)
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}
}

func TestRevenueCatWebhook_BadSecretIs401WithoutProcessing(t *testing.T) {
	service := &fakeRevenueCatService{}
	handler := RevenueCatWebhook(service, &fakeRevenueCatClient{secret: "rc_secret"}, nil, nil)

	rec := postRevenueCat(handler, `{"event":{"id":"evt_3","type":"RENEWAL"}}`, "Bearer wrong", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad secret, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service must not run on bad credentials")
	}

	rec = postRevenueCat(handler, `{"event":{"id":"evt_3","type":"RENEWAL"}}`, "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing credentials, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service must not run without credentials")
	}
}

func TestRevenueCatWebhook_MissingSecretIs500(t *testing.T) {
	service := &fakeRevenueCatService{}
	handler := RevenueCatWebhook(service, &fakeRevenueCatClient{secret: ""}, nil, nil)

	rec := postRevenueCat(handler, `{"event":{"id":"evt_4","type":"RENEWAL"}}`, "Bearer anything", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for missing configured secret, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service must not run without a configured secret")
	}
}

func TestRevenueCatWebhook_MalformedPayloadIs400(t *testing.T) {
	service := &fakeRevenueCatService{}
	handler := RevenueCatWebhook(service, &fakeRevenueCatClient{secret: "rc_secret"}, nil, nil)

	rec := postRevenueCat(handler, `{"event":`, "Bearer rc_secret", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed payload, got %d", rec.Code)
	}

	rec = postRevenueCat(handler, `{}`, "Bearer rc_secret", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing event, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service must not run on malformed payloads")
	}
}

func postRevenueCat(handler http.HandlerFunc, body, authorization, secretHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/revenuecat", strings.NewReader(body))
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	if secretHeader != "" {
		req.Header.Set("X-RevenueCat-Secret", secretHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

type fakeRevenueCatService struct {
	outcome *billing.Outcome
	err     error
	calls   int
}

func (f *fakeRevenueCatService) HandleEvent(ctx context.Context, payload *revenuecatwebhook.WebhookPayload) (*billing.Outcome, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.outcome != nil {
		return f.outcome, nil
	}
	return billing.Ignore(billing.ReasonEventNotMapped), nil
}

type fakeRevenueCatClient struct {
	secret string
}

func (c *fakeRevenueCatClient) WebhookSecret() string { return c.secret }

func (c *fakeRevenueCatClient) VerifySecret(presented string) bool {
	if c.secret == "" || presented == "" {
		return false
	}
	return hmac.Equal([]byte(c.secret), []byte(presented))
}
