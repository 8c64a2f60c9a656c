package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	cases := []struct {
		code   Code
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeStateConflict, http.StatusUnprocessableEntity},
		{CodeSignature, http.StatusBadRequest},
		{CodeConflict, http.StatusConflict},
		{CodeRateLimit, http.StatusTooManyRequests},
		{CodeExpired, http.StatusGone},
		{CodeOTPAttempts, http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		if got := MetadataFor(tc.code).HTTPStatus; got != tc.status {
			t.Fatalf("MetadataFor(%s).HTTPStatus = %d, want %d", tc.code, got, tc.status)
		}
	}
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("NOPE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	err := Wrap(CodeDependency, cause, "calling gateway")

	if !stdErrors.Is(err, cause) {
		t.Fatal("wrapped error should match cause via errors.Is")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("code = %s", err.Code())
	}
}

func TestAsThroughWrappedChain(t *testing.T) {
	inner := New(CodeNotFound, "order missing")
	outer := fmt.Errorf("handler: %w", inner)

	typed := As(outer)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeNotFound {
		t.Fatalf("code = %s", typed.Code())
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeOTPMismatch, "bad code"))
	if !HasCode(err, CodeOTPMismatch) {
		t.Fatal("expected HasCode to match")
	}
	if HasCode(err, CodeOTPUsed) {
		t.Fatal("unexpected match")
	}
	if HasCode(nil, CodeOTPUsed) {
		t.Fatal("nil error should not match")
	}
}
