package http

import (
	"context"
	"net/http"

	"github.com/go-chi/render"

	"contaae/internal/entitlements"
	"contaae/internal/log"
)

type principalKey struct{}

func principalFrom(ctx context.Context) (entitlements.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(entitlements.Principal)
	return p, ok
}

// withPrincipal resolves the caller once per request. Without a resolver
// every request is rejected.
func (s *Server) withPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Principal == nil {
			writeMessage(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		p, err := s.deps.Principal(r)
		if err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Principal resolution failed", log.FieldError, err.Error())
			writeMessage(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		logger := log.FromContext(r.Context()).With(log.FieldPlan, p.Plan)
		ctx := context.WithValue(r.Context(), principalKey{}, p)
		ctx = log.NewContext(ctx, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) require(cap entitlements.Capability) func(http.Handler) http.Handler {
	return s.requireAny(cap)
}

// requireAny lets the request through when the principal holds at least one
// of caps.
func (s *Server) requireAny(caps ...entitlements.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := principalFrom(r.Context())
			for _, c := range caps {
				if p.Allows(c) {
					next.ServeHTTP(w, r)
					return
				}
			}
			forbidden(w, r, caps[0])
		})
	}
}

func forbidden(w http.ResponseWriter, r *http.Request, cap entitlements.Capability) {
	log.FromContext(r.Context()).InfoContext(r.Context(), "Capability denied", log.FieldCapability, string(cap))
	writeMessage(w, r, http.StatusForbidden, "your plan does not include "+string(cap))
}

type entitlementsResponse struct {
	UserID       string                    `json:"user_id,omitempty"`
	Plan         string                    `json:"plan"`
	SuperAdmin   bool                      `json:"super_admin"`
	Capabilities entitlements.Capabilities `json:"capabilities"`
	Enabled      []entitlements.Capability `json:"enabled"`
}

func (s *Server) handleEntitlements(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	caps := p.Capabilities
	if p.SuperAdmin {
		caps = entitlements.All()
	}
	enabled := caps.Enabled()
	if enabled == nil {
		enabled = []entitlements.Capability{}
	}
	render.JSON(w, r, entitlementsResponse{
		UserID:       p.UserID,
		Plan:         p.Plan,
		SuperAdmin:   p.SuperAdmin,
		Capabilities: caps,
		Enabled:      enabled,
	})
}
