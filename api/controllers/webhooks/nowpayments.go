package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/telestars/premium-backend/api/responses"
	"github.com/telestars/premium-backend/internal/payments"
	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
	"github.com/telestars/premium-backend/pkg/logger"
	"github.com/telestars/premium-backend/pkg/nowpayments"
)

type callbackService interface {
	HandleCallback(ctx context.Context, rawPayload []byte, signature string) (*payments.CallbackResult, error)
}

// NowPaymentsIPN handles provider payment callbacks. The response status is
// what drives provider retries: any non-2xx except 401 is retried, a 401
// means the IPN secret disagrees and retrying the same payload cannot help.
func NowPaymentsIPN(svc callbackService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get(nowpayments.SignatureHeader)

		result, err := svc.HandleCallback(ctx, payload, signature)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"outcome": result.Outcome})
	}
}
