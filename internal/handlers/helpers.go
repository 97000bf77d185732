package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/casalink/api/internal/platform/auth"
	"github.com/casalink/api/internal/platform/httpx"
	"github.com/casalink/api/internal/services"
)

const maxRequestBodyBytes = 1 << 20

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func decodeJSONBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func parsePagination(r *http.Request) services.Pagination {
	pager := services.Pagination{}
	if sizeRaw := strings.TrimSpace(r.URL.Query().Get("page_size")); sizeRaw != "" {
		if size, err := strconv.Atoi(sizeRaw); err == nil && size > 0 {
			pager.PageSize = size
		}
	}
	pager.PageToken = strings.TrimSpace(r.URL.Query().Get("page_token"))
	return pager
}

// requireActor resolves the authenticated marketplace actor, writing the error
// response itself when the request cannot proceed.
func requireActor(ctx context.Context, w http.ResponseWriter) (services.Actor, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return services.Actor{}, false
	}

	for _, role := range identity.Roles {
		if parsed, ok := services.ParseActorRole(role); ok {
			return services.Actor{ID: identity.UID, Role: parsed}, true
		}
	}

	httpx.WriteError(ctx, w, httpx.NewError("insufficient_role", "identity has no marketplace role", http.StatusForbidden))
	return services.Actor{}, false
}

// requireHousehold is requireActor narrowed to the household side.
func requireHousehold(ctx context.Context, w http.ResponseWriter) (services.Actor, bool) {
	actor, ok := requireActor(ctx, w)
	if !ok {
		return services.Actor{}, false
	}
	if actor.Role != services.RoleHousehold {
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_role", "household role required", http.StatusForbidden))
		return services.Actor{}, false
	}
	return actor, true
}
