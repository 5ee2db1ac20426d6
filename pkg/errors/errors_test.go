package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := Wrap(CodeDependency, cause, "redis unavailable")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to satisfy errors.Is")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestAsFindsTypedErrorInChain(t *testing.T) {
	inner := New(CodeNotFound, "plan missing")
	wrapped := fmt.Errorf("lookup: %w", inner)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error in chain")
	}
	if typed.Code() != CodeNotFound {
		t.Fatalf("unexpected code %s", typed.Code())
	}
}

func TestAsReturnsNilForPlainErrors(t *testing.T) {
	if typed := As(stdErrors.New("plain")); typed != nil {
		t.Fatalf("expected nil, got %v", typed)
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("MYSTERY"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal metadata, got %d", meta.HTTPStatus)
	}
}
