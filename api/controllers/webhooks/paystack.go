package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/fundi-app/fundi-backend/api/responses"
	pkgerrors "github.com/fundi-app/fundi-backend/pkg/errors"
	"github.com/fundi-app/fundi-backend/pkg/logger"
	"github.com/fundi-app/fundi-backend/pkg/metrics"
)

const signatureHeader = "x-paystack-signature"

// maxWebhookBody caps the raw payload read from the processor.
const maxWebhookBody = 1 << 20

type paystackIngestor interface {
	Ingest(ctx context.Context, payload []byte) error
}

type signatureVerifier interface {
	VerifySignature(payload []byte, signature string) bool
}

// PaystackWebhook verifies the HMAC signature over the raw body, then hands
// the payload to the ingestion service. Signature failures are rejected
// outright and never recorded on the event ledger.
func PaystackWebhook(svc paystackIngestor, verifier signatureVerifier, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "signature verifier unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get(signatureHeader)
		if signature == "" || !verifier.VerifySignature(payload, signature) {
			m.IncRejected()
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeAuthentication, "invalid webhook signature"))
			return
		}

		if err := svc.Ingest(ctx, payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
