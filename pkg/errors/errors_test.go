package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataTable(t *testing.T) {
	want := map[Code]Metadata{
		CodeValidation:            {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
		CodeUnauthorized:          {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
		CodeForbidden:             {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
		CodeNotFound:              {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
		CodeConflict:              {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected"},
		CodeStateConflict:         {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true},
		CodeIdempotency:           {HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", DetailsAllowed: true},
		CodeInternal:              {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true},
		CodeDependency:            {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable", Retryable: true, DetailsAllowed: true},
		CodeInsufficientMaterials: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "insufficient materials", DetailsAllowed: true},
		CodePromoIneligible:       {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "promo code not applicable", DetailsAllowed: true},
		CodeConcurrencyConflict:   {HTTPStatus: http.StatusConflict, PublicMessage: "concurrent update detected", Retryable: true},
	}
	for code, meta := range want {
		assert.Equal(t, meta, MetadataFor(code), "code %s", code)
	}
	assert.Equal(t, http.StatusInternalServerError, MetadataFor("SOMETHING_UNKNOWN").HTTPStatus)
}

func TestConstructorsKeepCodeMessageAndCause(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	assert.Equal(t, CodeValidation, base.Code())
	assert.Equal(t, "missing foo", base.Message())
	assert.Nil(t, base.Details())
	assert.Equal(t, map[string]any{"field": "foo"}, base.WithDetails(map[string]any{"field": "foo"}).Details())
	assert.EqualError(t, Newf(CodeNotFound, "order %d missing", 7), "NOT_FOUND: order 7 missing")

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, CodeConflict, wrapped.Code())

	assert.Equal(t, CodeForbidden, As(fmt.Errorf("outer: %w", New(CodeForbidden, "no entry"))).Code())
	assert.Nil(t, As(nil))
	assert.Nil(t, As(cause))
}

func TestHasCodeAndRetryable(t *testing.T) {
	conflict := Wrap(CodeConcurrencyConflict, stdErrors.New("rows affected 0"), "material changed")
	wrapped := fmt.Errorf("attempt 2: %w", conflict)

	assert.True(t, HasCode(wrapped, CodeConcurrencyConflict))
	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(New(CodeInsufficientMaterials, "not enough stock")))
	assert.False(t, IsRetryable(stdErrors.New("plain")))
	assert.False(t, HasCode(nil, CodeNotFound))
}

func TestDumpDecodesDriverErrors(t *testing.T) {
	cause := &pq.Error{Code: "40001", Message: "could not serialize access", Table: "materials"}
	d := Dump(fmt.Errorf("produce: %w", Wrap(CodeConcurrencyConflict, cause, "decrement failed")))

	assert.Equal(t, CodeConcurrencyConflict, d.Code)
	assert.True(t, d.Retryable)
	require.NotNil(t, d.Store)
	assert.Equal(t, "40001", d.Store.Code)
	assert.Equal(t, "materials", d.Store.Table)
	assert.Len(t, d.Chain, 3)

	fields := d.Fields()
	assert.Equal(t, "postgres", fields["db_engine"])
	assert.Equal(t, CodeConcurrencyConflict, fields["error_code"])

	lite := Dump(sqlite3.Error{Code: sqlite3.ErrBusy})
	require.NotNil(t, lite.Store)
	assert.Equal(t, "sqlite", lite.Store.Engine)

	assert.Nil(t, Dump(stdErrors.New("plain")).Store)
	assert.Empty(t, Dump(nil).TopMessage)
}

func TestIsUniqueViolation(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"pq unique":     {&pq.Error{Code: "23505", Constraint: "ux_promo_codes_code"}, true},
		"pgx unique":    {fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		"pq check":      {&pq.Error{Code: "23514"}, false},
		"sqlite unique": {sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, true},
		"sqlite check":  {sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintCheck}, false},
		"message only":  {stdErrors.New("UNIQUE constraint failed: promo_codes.code"), false},
		"nil":           {nil, false},
	}
	for name, tc := range cases {
		assert.Equal(t, tc.want, IsUniqueViolation(tc.err), name)
	}
}
