package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/aether-os/engine/internal/api/middleware"
	"github.com/aether-os/engine/internal/preview"
	"github.com/aether-os/engine/pkg/logger"
)

// PreviewHandler checks whether a URL can be framed and proxies it when not.
type PreviewHandler struct {
	checker *preview.Checker
	proxy   *preview.Proxy
}

func NewPreviewHandler(checker *preview.Checker, proxy *preview.Proxy) *PreviewHandler {
	return &PreviewHandler{checker: checker, proxy: proxy}
}

// Check answers 200 even when the target is unreachable; the result says so.
func (h *PreviewHandler) Check(w http.ResponseWriter, r *http.Request) {
	target, err := preview.ParseTarget(r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, h.checker.Check(r.Context(), target))
}

// Proxy streams the target page with framing restrictions removed. It
// writes the upstream body directly, outside the JSON envelope.
func (h *PreviewHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	target, err := preview.ParseTarget(r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.proxy.Forward(r.Context(), w, target); err != nil {
		if w.Header().Get("Content-Type") == "" {
			writeError(w, r, err)
			return
		}
		logger.L().Warn("proxy stream interrupted",
			zap.String("id", middleware.GetRequestID(r.Context())),
			zap.String("url", target.String()),
			zap.Error(err),
		)
	}
}
