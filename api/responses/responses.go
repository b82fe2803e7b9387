package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

// codes whose own message is safe to show to callers
var passthroughMessages = map[pkgerrors.Code]bool{
	pkgerrors.CodeValidation:            true,
	pkgerrors.CodeForbidden:             true,
	pkgerrors.CodeUnauthorized:          true,
	pkgerrors.CodeNotFound:              true,
	pkgerrors.CodeConflict:              true,
	pkgerrors.CodeStateConflict:         true,
	pkgerrors.CodeIdempotency:           true,
	pkgerrors.CodeInsufficientMaterials: true,
	pkgerrors.CodePromoIneligible:       true,
	pkgerrors.CodeConcurrencyConflict:   true,
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Data: data})
}

// WritePage writes a cursor page. An empty cursor means the last page.
func WritePage(w http.ResponseWriter, data any, nextCursor string) {
	writeJSON(w, http.StatusOK, Envelope{Data: data, NextCursor: nextCursor})
}

// WriteError maps err onto the public error envelope. Client errors are
// logged at warn, everything else at error.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	if passthroughMessages[typed.Code()] && typed.Message() != "" {
		msg = typed.Message()
	}

	var payload ErrorBody
	payload.Error.Code = string(typed.Code())
	payload.Error.Message = msg
	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
	}

	if logg != nil {
		fields := pkgerrors.Dump(err).Fields()
		fields["http_status"] = meta.HTTPStatus
		ctx = logg.WithFields(ctx, fields)
		if meta.HTTPStatus < http.StatusInternalServerError {
			logg.Warn(ctx, "request.rejected")
		} else {
			logg.Error(ctx, "request.error", err)
		}
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
