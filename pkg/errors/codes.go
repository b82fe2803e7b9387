package errors

import "net/http"

// Code is the stable, machine-readable identifier clients branch on.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// Domain failures.
	CodeInsufficientMaterials Code = "INSUFFICIENT_MATERIALS"
	CodePromoIneligible       Code = "PROMO_INELIGIBLE"
	CodeConcurrencyConflict   Code = "CONCURRENCY_CONFLICT"
)

// Metadata is how a code surfaces over HTTP. Details are only serialized
// when DetailsAllowed is set; otherwise clients see PublicMessage alone.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var codeTable = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true,
	},
	CodeUnauthorized: {
		HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required",
	},
	CodeForbidden: {
		HTTPStatus: http.StatusForbidden, PublicMessage: "access denied",
	},
	CodeNotFound: {
		HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found",
	},
	CodeConflict: {
		HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected",
	},
	CodeStateConflict: {
		HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true,
	},
	CodeIdempotency: {
		HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", DetailsAllowed: true,
	},
	CodeInternal: {
		HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error",
	},
	CodeDependency: {
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true,
	},
	CodeInsufficientMaterials: {
		HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "insufficient materials", DetailsAllowed: true,
	},
	CodePromoIneligible: {
		HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "promo code not applicable", DetailsAllowed: true,
	},
	CodeConcurrencyConflict: {
		HTTPStatus: http.StatusConflict, Retryable: true, PublicMessage: "concurrent update detected",
	},
}

// MetadataFor maps unknown codes to CodeInternal's metadata.
func MetadataFor(code Code) Metadata {
	meta, ok := codeTable[code]
	if !ok {
		return codeTable[CodeInternal]
	}
	return meta
}
