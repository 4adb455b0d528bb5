package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/fundi-app/fundi-backend/pkg/errors"
	"github.com/fundi-app/fundi-backend/pkg/logger"
)

type fakeIngestor struct {
	payloads [][]byte
	err      error
}

func (f *fakeIngestor) Ingest(_ context.Context, payload []byte) error {
	f.payloads = append(f.payloads, payload)
	return f.err
}

type fakeVerifier struct {
	valid bool
}

func (f *fakeVerifier) VerifySignature([]byte, string) bool { return f.valid }

func newWebhookRequest(body string, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", bytes.NewBufferString(body))
	if signature != "" {
		req.Header.Set("x-paystack-signature", signature)
	}
	return req
}

func TestPaystackWebhookAcceptsVerifiedPayload(t *testing.T) {
	ingestor := &fakeIngestor{}
	handler := PaystackWebhook(ingestor, &fakeVerifier{valid: true}, nil, logger.New(logger.Options{ServiceName: "test"}))

	w := httptest.NewRecorder()
	handler(w, newWebhookRequest(`{"event":"charge.success"}`, "sig"))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, ingestor.payloads, 1)
	assert.JSONEq(t, `{"event":"charge.success"}`, string(ingestor.payloads[0]))
}

func TestPaystackWebhookRejectsMissingSignature(t *testing.T) {
	ingestor := &fakeIngestor{}
	handler := PaystackWebhook(ingestor, &fakeVerifier{valid: true}, nil, logger.New(logger.Options{ServiceName: "test"}))

	w := httptest.NewRecorder()
	handler(w, newWebhookRequest(`{}`, ""))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, ingestor.payloads)
}

func TestPaystackWebhookRejectsBadSignature(t *testing.T) {
	ingestor := &fakeIngestor{}
	handler := PaystackWebhook(ingestor, &fakeVerifier{valid: false}, nil, logger.New(logger.Options{ServiceName: "test"}))

	w := httptest.NewRecorder()
	handler(w, newWebhookRequest(`{}`, "bad"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, ingestor.payloads)
}

func TestPaystackWebhookPropagatesHandlerFailure(t *testing.T) {
	ingestor := &fakeIngestor{err: pkgerrors.New(pkgerrors.CodeDependency, "handler failed")}
	handler := PaystackWebhook(ingestor, &fakeVerifier{valid: true}, nil, logger.New(logger.Options{ServiceName: "test"}))

	w := httptest.NewRecorder()
	handler(w, newWebhookRequest(`{}`, "sig"))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
