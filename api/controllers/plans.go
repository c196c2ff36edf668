package controllers

import (
	"context"
	"net/http"

	"github.com/telestars/premium-backend/api/responses"
	"github.com/telestars/premium-backend/internal/settings"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
	"github.com/telestars/premium-backend/pkg/logger"
)

type snapshotProvider interface {
	Snapshot(ctx context.Context) (*settings.Snapshot, error)
}

// ListPlans returns the current plan catalog.
func ListPlans(svc snapshotProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}

		snapshot, err := svc.Snapshot(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		plans := snapshot.Plans
		if plans == nil {
			plans = []settings.Plan{}
		}
		responses.WriteSuccess(w, map[string]any{"plans": plans})
	}
}
