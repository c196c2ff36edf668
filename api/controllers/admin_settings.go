package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/telestars/premium-backend/api/responses"
	"github.com/telestars/premium-backend/api/validators"
	"github.com/telestars/premium-backend/pkg/db/models"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
	"github.com/telestars/premium-backend/pkg/logger"
)

type settingsService interface {
	List(ctx context.Context) ([]models.Setting, error)
	Update(ctx context.Context, values map[string]string) error
}

type settingView struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type updateSettingsRequest struct {
	Values map[string]string `json:"values" validate:"required"`
}

// AdminListSettings returns every stored configuration row.
func AdminListSettings(svc settingsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}

		rows, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]settingView, 0, len(rows))
		for _, row := range rows {
			views = append(views, settingView{Key: row.Key, Value: row.Value, UpdatedAt: row.UpdatedAt})
		}
		responses.WriteSuccess(w, map[string]any{"settings": views})
	}
}

// AdminUpdateSettings validates and stores the provided key-value pairs.
func AdminUpdateSettings(svc settingsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}

		var body updateSettingsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Update(r.Context(), body.Values); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}
