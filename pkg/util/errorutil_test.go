package util_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

func TestMapErrorNilStaysNil(t *testing.T) {
	// a typed-nil *DomainError inside the error interface would read as
	// non-nil at every call site that does `if err != nil`
	if err := apperrors.MapError(nil); err != nil {
		t.Fatalf("MapError(nil) = %v (%T), want untyped nil", err, err)
	}
}

func TestMapErrorPassesDomainErrorsThrough(t *testing.T) {
	orig := apperrors.NewValidationError("missing title", nil)
	mapped := apperrors.MapError(orig)

	var domainErr *apperrors.DomainError
	if !errors.As(mapped, &domainErr) {
		t.Fatalf("MapError(%v) = %T, want *DomainError", orig, mapped)
	}
	if domainErr.Code != "VALIDATION_FAILED" || domainErr.HTTPStatus != http.StatusBadRequest {
		t.Errorf("mapped = %s/%d, want VALIDATION_FAILED/400", domainErr.Code, domainErr.HTTPStatus)
	}
}

func TestMapErrorTranslatesNoRows(t *testing.T) {
	mapped := apperrors.MapError(pgx.ErrNoRows)

	var domainErr *apperrors.DomainError
	if !errors.As(mapped, &domainErr) {
		t.Fatalf("MapError(pgx.ErrNoRows) = %T, want *DomainError", mapped)
	}
	if domainErr.Code != "NOT_FOUND" {
		t.Errorf("code = %s, want NOT_FOUND", domainErr.Code)
	}
}

func TestMapErrorWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("connection reset")
	mapped := apperrors.MapError(cause)

	var domainErr *apperrors.DomainError
	if !errors.As(mapped, &domainErr) {
		t.Fatalf("MapError(%v) = %T, want *DomainError", cause, mapped)
	}
	if domainErr.Code != "INTERNAL_ERROR" || !errors.Is(mapped, cause) {
		t.Errorf("mapped = %s wrapping %v", domainErr.Code, domainErr.Err)
	}
}
