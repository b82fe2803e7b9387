package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-fulfillment/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-fulfillment/pkg/redis"
)

const (
	IdempotencyTTL         = 24 * time.Hour
	CriticalIdempotencyTTL = 7 * 24 * time.Hour

	IdempotencyHeader = "Idempotency-Key"
	ReplayHeader      = "Idempotent-Replay"

	// Lifetime of the in-flight claim; bounds how long a crashed request
	// blocks its key.
	inFlightTTL = 5 * time.Minute
)

// replayedHeaders are copied from the original response into the replay.
var replayedHeaders = []string{"Content-Type", "Location"}

// storedResponse is what lives under an idempotency key. A claim written
// before the handler runs has InFlight set and no response yet.
type storedResponse struct {
	RequestHash string            `json:"request_hash"`
	InFlight    bool              `json:"in_flight,omitempty"`
	Status      int               `json:"status,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        []byte            `json:"body,omitempty"`
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	ttl   time.Duration
	logg  *logger.Logger
}

// Idempotency requires an Idempotency-Key on the wrapped routes. The first
// request with a key runs the handler and its response is kept for ttl;
// repeats with the same body get that response back with Idempotent-Replay
// set. A repeat with another body, or one that races the original, is
// rejected. 5xx and 409 responses are not kept so the client may retry.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	g := &idempotencyGuard{store: store, ttl: ttl, logg: logg}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serve(w, r, next)
		})
	}
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ctx := r.Context()
	id := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if id == "" {
		g.fail(ctx, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		g.fail(ctx, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	key := g.store.IdempotencyKey(requestScope(r), id)
	hash := bodyHash(body)

	claimed, err := g.claim(ctx, key, hash)
	if err != nil {
		g.fail(ctx, w, err)
		return
	}
	if !claimed {
		g.replay(ctx, w, key, hash)
		return
	}

	var captured bytes.Buffer
	ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
	ww.Tee(&captured)
	next.ServeHTTP(ww, r)

	// The client may hang up once the response is out; settle regardless.
	g.settle(context.WithoutCancel(ctx), key, hash, ww, captured.Bytes())
}

func (g *idempotencyGuard) claim(ctx context.Context, key, hash string) (bool, error) {
	placeholder, err := json.Marshal(storedResponse{RequestHash: hash, InFlight: true})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency claim")
	}
	ok, err := g.store.SetNX(ctx, key, string(placeholder), inFlightTTL)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
	}
	return ok, nil
}

func (g *idempotencyGuard) settle(ctx context.Context, key, hash string, ww chimw.WrapResponseWriter, body []byte) {
	status := ww.Status()
	if status == 0 {
		status = http.StatusOK
	}
	if status >= http.StatusInternalServerError || status == http.StatusConflict {
		if err := g.store.Del(ctx, key); err != nil {
			g.logError(ctx, "release idempotency key", err)
		}
		return
	}

	saved := storedResponse{RequestHash: hash, Status: status, Body: body}
	for _, name := range replayedHeaders {
		if v := ww.Header().Get(name); v != "" {
			if saved.Headers == nil {
				saved.Headers = make(map[string]string, len(replayedHeaders))
			}
			saved.Headers[name] = v
		}
	}
	payload, err := json.Marshal(saved)
	if err != nil {
		g.logError(ctx, "encode idempotency record", err)
		return
	}
	if err := g.store.Set(ctx, key, string(payload), g.ttl); err != nil {
		g.logError(ctx, "persist idempotency record", err)
	}
}

func (g *idempotencyGuard) replay(ctx context.Context, w http.ResponseWriter, key, hash string) {
	raw, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		// The claim expired between SetNX and Get.
		g.fail(ctx, w, pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "idempotent request expired mid-flight; retry"))
		return
	case err != nil:
		g.fail(ctx, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}

	var saved storedResponse
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		g.fail(ctx, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case saved.RequestHash != hash:
		g.fail(ctx, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	case saved.InFlight:
		g.fail(ctx, w, pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "request with this idempotency key is still in progress"))
		return
	}

	for name, v := range saved.Headers {
		w.Header().Set(name, v)
	}
	w.Header().Set(ReplayHeader, "true")
	w.WriteHeader(saved.Status)
	_, _ = w.Write(saved.Body)
}

func (g *idempotencyGuard) fail(ctx context.Context, w http.ResponseWriter, err error) {
	responses.WriteError(ctx, g.logg, w, err)
}

func (g *idempotencyGuard) logError(ctx context.Context, msg string, err error) {
	if g.logg != nil {
		g.logg.Error(ctx, msg, err)
	}
}

// requestScope keys the record by caller and route so two admins can reuse
// the same client-generated id.
func requestScope(r *http.Request) string {
	return UserIDFromContext(r.Context()) + "|" + r.Method + "|" + r.URL.Path
}

func bodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
