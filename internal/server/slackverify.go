package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/tbracken/groqlet/internal/signing"
)

// maxSlackBody caps how much of a webhook body is read for verification.
// Slack payloads are a few KB; anything near this limit is not Slack.
const maxSlackBody = 1 << 20

// VerifySlack authenticates webhook requests with the Slack signing scheme
// before they reach a handler. The signature covers the exact raw body
// bytes, so the body is read here, verified, and restored for the handler
// to parse. Rejected requests never reach the handler: missing headers and
// stale timestamps get a 400, a wrong signature gets a 403.
func VerifySlack(verifier *signing.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSlackBody))
			if err != nil {
				AddError(r.Context(), err)
				http.Error(w, "unable to read request body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			err = verifier.Verify(
				r.Header.Get(signing.HeaderTimestamp),
				r.Header.Get(signing.HeaderSignature),
				body,
			)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			AddError(r.Context(), err)
			switch {
			case errors.Is(err, signing.ErrMissingHeaders):
				http.Error(w, "missing signature headers", http.StatusBadRequest)
			case errors.Is(err, signing.ErrStaleRequest):
				http.Error(w, "stale request", http.StatusBadRequest)
			default:
				http.Error(w, "invalid signature", http.StatusForbidden)
			}
		})
	}
}
