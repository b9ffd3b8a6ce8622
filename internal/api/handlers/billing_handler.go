package handlers

import (
	"net/http"

	"github.com/aether-os/engine/internal/api/types"
	"github.com/aether-os/engine/internal/services"
)

// BillingHandler serves card checkout and the two payment webhooks.
type BillingHandler struct {
	svc services.BillingService
}

func NewBillingHandler(svc services.BillingService) *BillingHandler {
	return &BillingHandler{svc: svc}
}

// Checkout godoc
// @Summary  Start a card checkout session
// @Tags     billing
// @Param    body  body      types.CheckoutRequest  true  "plan"
// @Success  200   {object}  types.APIResponse
// @Failure  500   {object}  types.APIResponse
// @Router   /billing/checkout [post]
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req types.CheckoutRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	url, err := h.svc.Checkout(r.Context(), req.Plan, req.UserID, r.Header.Get("Origin"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"url": url})
}

func (h *BillingHandler) Verify(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Verify(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *BillingHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req types.BillingApplyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := h.svc.Apply(r.Context(), req.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"success": true, "plan": plan})
}

func (h *BillingHandler) Setup(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.svc.SetupInfo())
}

// TransferWebhook godoc
// @Summary      Bank transfer notification
// @Description  The memo must carry the paying user's id. 200000 buys pro, 2000000 enterprise.
// @Tags         webhooks
// @Param        body  body      services.TransferNotification  true  "notification"
// @Success      200   {object}  types.APIResponse
// @Router       /webhooks/payment [post]
func (h *BillingHandler) TransferWebhook(w http.ResponseWriter, r *http.Request) {
	var req services.TransferNotification
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.HandleTransfer(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

// LegacyWebhook acknowledges memo-keyword payments without recording them.
func (h *BillingHandler) LegacyWebhook(w http.ResponseWriter, r *http.Request) {
	var req services.LegacyPayment
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.HandleLegacyPayment(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}
