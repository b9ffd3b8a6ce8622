package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aether-os/engine/internal/models"
	appErr "github.com/aether-os/engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

const userID = "3f2b8c1e-4d5a-4b6c-8e7f-9a0b1c2d3e4f"

func TestResolveTransfer(t *testing.T) {
	cases := []struct {
		name    string
		content string
		amount  float64
		plan    string
		ignored string
	}{
		{"no uuid", "AETHER UPGRADE someone", 5_000_000, "", IgnoredNoUser},
		{"below pro", "AETHER UPGRADE " + userID, 199_999, "", IgnoredInsufficient},
		{"exactly pro", "AETHER UPGRADE " + userID, 200_000, models.PlanPro, ""},
		{"between", "AETHER UPGRADE " + userID, 1_999_999, models.PlanPro, ""},
		{"exactly enterprise", "AETHER UPGRADE " + userID, 2_000_000, models.PlanEnterprise, ""},
		{"fraction below pro", "AETHER UPGRADE " + userID, 199_999.5, "", IgnoredInsufficient},
		{"fractional pro", "AETHER UPGRADE " + userID, 500_000.0, models.PlanPro, ""},
		{"upper-case uuid", "aether upgrade 3F2B8C1E-4D5A-4B6C-8E7F-9A0B1C2D3E4F", 3_000_000, models.PlanEnterprise, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := ResolveTransfer(tc.content, tc.amount)
			require.Equal(t, tc.ignored, d.Ignored)
			require.Equal(t, tc.plan, d.Plan)
			if tc.ignored != IgnoredNoUser {
				require.Equal(t, userID, d.UserID.String())
			}
		})
	}
}

func TestMemoPlan(t *testing.T) {
	require.Equal(t, models.PlanPro, MemoPlan("AETHER-PRO-001"))
	require.Equal(t, models.PlanEnterprise, MemoPlan("AETHER-ENTERPRISE-PRO"))
	require.Equal(t, models.PlanFree, MemoPlan("aether-pro"))
}

func TestPriceFor(t *testing.T) {
	require.Equal(t, int64(4000), PriceFor("enterprise").Amount)
	require.Equal(t, "Pro Architect", PriceFor("platinum").Name)
}

func TestNewStripeGatewayWithoutKey(t *testing.T) {
	require.Nil(t, NewStripeGateway("", nil))
}

func stripeServer(t *testing.T, h http.HandlerFunc) Gateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
	})
	return NewStripeGateway("sk_test_123", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
}

func TestStripeGetSession(t *testing.T) {
	g := stripeServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/cs_1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "cs_1", "object": "checkout.session", "payment_status": "paid",
			"metadata": map[string]string{"plan": "enterprise", "userId": userID},
		})
	})

	s, err := g.GetSession(context.Background(), "cs_1")
	require.NoError(t, err)
	require.True(t, s.Paid)
	require.Equal(t, "enterprise", s.Plan)
	require.Equal(t, userID, s.UserID)
}

func TestStripeCreateCheckout(t *testing.T) {
	g := stripeServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "1200", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "https://app.example/billing/cancel", r.PostForm.Get("cancel_url"))
		assert.Equal(t, userID, r.PostForm.Get("metadata[userId]"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "cs_2", "object": "checkout.session", "url": "https://checkout.stripe.com/c/cs_2",
			"payment_status": "unpaid", "metadata": map[string]string{"plan": "pro", "userId": userID},
		})
	})

	s, err := g.CreateCheckout(context.Background(), CheckoutInput{Plan: "pro", UserID: userID, Origin: "https://app.example"})
	require.NoError(t, err)
	require.Equal(t, "https://checkout.stripe.com/c/cs_2", s.URL)
	require.False(t, s.Paid)
}

func TestStripeNotFound(t *testing.T) {
	g := stripeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"type": "invalid_request_error", "message": "No such checkout.session"},
		})
	})

	_, err := g.GetSession(context.Background(), "cs_missing")
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound), err)
}
