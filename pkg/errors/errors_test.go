package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestMetadataForStatusMapping(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:     http.StatusBadRequest,
		CodeAuthentication: http.StatusUnauthorized,
		CodeUnauthorized:   http.StatusUnauthorized,
		CodeForbidden:      http.StatusForbidden,
		CodeNotFound:       http.StatusNotFound,
		CodeConflict:       http.StatusConflict,
		CodeStateConflict:  http.StatusUnprocessableEntity,
		CodeInternal:       http.StatusInternalServerError,
		CodeDependency:     http.StatusServiceUnavailable,
	}
	for code, want := range cases {
		if got := MetadataFor(code).HTTPStatus; got != want {
			t.Errorf("%s: status = %d, want %d", code, got, want)
		}
	}
}

func TestMetadataForRetryableAndDetails(t *testing.T) {
	for _, code := range []Code{CodeInternal, CodeDependency} {
		if !MetadataFor(code).Retryable {
			t.Errorf("%s should be retryable", code)
		}
	}
	for _, code := range []Code{CodeValidation, CodeStateConflict, CodeDependency} {
		if !MetadataFor(code).DetailsAllowed {
			t.Errorf("%s should allow details", code)
		}
	}
	if MetadataFor(CodeNotFound).DetailsAllowed {
		t.Error("not-found responses must not leak details")
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError || !meta.Retryable {
		t.Fatalf("unknown code should map to internal metadata, got %+v", meta)
	}
}

func TestNewCarriesCodeAndMessage(t *testing.T) {
	err := New(CodeValidation, "missing booking id")
	if err.Code() != CodeValidation || err.Message() != "missing booking id" {
		t.Fatalf("got code %s message %q", err.Code(), err.Message())
	}
	if err.Details() != nil {
		t.Fatal("fresh error should carry no details")
	}

	err.WithDetails(map[string]any{"field": "booking_id"})
	if err.Details() == nil {
		t.Fatal("WithDetails should persist")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("connection reset")
	wrapped := Wrap(CodeConflict, cause, "saving payment")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatal("errors.Is lost the cause chain")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("code = %s", wrapped.Code())
	}

	if nilCause := Wrap(CodeDependency, nil, "no cause"); nilCause.Unwrap() != nil {
		t.Fatal("nil cause must stay nil")
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatal("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatal("As(nil) should return nil")
	}
}
