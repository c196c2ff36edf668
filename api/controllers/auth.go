package controllers

import (
	"context"
	"net/http"

	"github.com/telestars/premium-backend/api/responses"
	"github.com/telestars/premium-backend/api/validators"
	"github.com/telestars/premium-backend/internal/auth"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
	"github.com/telestars/premium-backend/pkg/logger"
)

type loginService interface {
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)
}

// AdminAuthLogin wires the admin login endpoint into the HTTP layer.
func AdminAuthLogin(svc loginService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
