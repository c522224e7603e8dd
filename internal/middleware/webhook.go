package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/songer666/jobs-ai/internal/dispatch"
	"github.com/songer666/jobs-ai/internal/models"
	"github.com/songer666/jobs-ai/internal/utils"
)

const maxWebhookBody = 1 << 20

// VerifyWebhookSignature checks the Upstash-Signature header against the raw
// body and the callback URL, which is baseURL plus the request path. Without
// signing keys every delivery is let through with a warning.
func VerifyWebhookSignature(verifier *dispatch.Verifier, baseURL string, logger *zap.Logger) func(http.Handler) http.Handler {
	baseURL = strings.TrimRight(baseURL, "/")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !verifier.Enabled() {
				logger.Warn("Webhook signing keys not configured, skipping signature check", zap.String("path", r.URL.Path))
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
			if err != nil {
				utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{
					Code:    "invalid_body",
					Message: "Failed to read request body",
				})
				return
			}

			if err := verifier.Verify(r.Header.Get(dispatch.SignatureHeader), baseURL+r.URL.Path, body); err != nil {
				logger.Warn("Rejected webhook with invalid signature", zap.String("path", r.URL.Path), zap.Error(err))
				utils.JSON(w, http.StatusUnauthorized, models.ErrorResponse{
					Code:    "invalid_signature",
					Message: "Invalid webhook signature",
				})
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			next.ServeHTTP(w, r)
		})
	}
}
