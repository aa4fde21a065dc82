package controllers

import (
	"net/http"
	"strings"

	"github.com/fxtoolworks/licensebot/api/responses"
	"github.com/fxtoolworks/licensebot/api/validators"
	"github.com/fxtoolworks/licensebot/internal/licensing"
	"github.com/fxtoolworks/licensebot/pkg/enums"
	pkgerrors "github.com/fxtoolworks/licensebot/pkg/errors"
	"github.com/fxtoolworks/licensebot/pkg/logger"
)

type validateRequest struct {
	LicenseKey string `json:"license_key" validate:"required"`
	Hwid       string `json:"hwid" validate:"required"`
}

type validateResponse struct {
	Status     string `json:"status"`
	LicenseKey string `json:"license_key"`
	Username   string `json:"username"`
	Product    string `json:"product"`
	Expiry     string `json:"expiry"`
	Hwid       string `json:"hwid,omitempty"`
}

// PublicValidate exposes license validation to deployed tools. Both fields
// are required; unlike the chat flow there is no hwid skip, so remote callers
// cannot dodge the hardware binding check. The verdict mapping mirrors the
// chat command: a bad key is a 404, everything else that blocks use is a 403
// with a distinct message.
func PublicValidate(svc licensing.Validator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "validation service unavailable"))
			return
		}

		var payload validateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key := strings.TrimSpace(payload.LicenseKey)
		hwid := strings.TrimSpace(payload.Hwid)
		if hwid == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "hwid is required"))
			return
		}

		verdict, err := svc.Validate(r.Context(), key, hwid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		switch verdict.Result {
		case enums.VerdictValid:
			license := verdict.License
			responses.WriteSuccess(w, validateResponse{
				Status:     verdict.Result.String(),
				LicenseKey: license.LicenseKey,
				Username:   license.Username,
				Product:    license.Product,
				Expiry:     license.Expiry.UTC().Format("2006-01-02"),
				Hwid:       license.Hwid,
			})
		case enums.VerdictNotFound:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "license key not found"))
		case enums.VerdictHwidMismatch:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "license is bound to different hardware"))
		case enums.VerdictDeactivated:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "license is deactivated"))
		case enums.VerdictExpired:
			message := "license expired on " + verdict.License.Expiry.UTC().Format("2006-01-02")
			if verdict.Message != "" {
				message += ". " + verdict.Message
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, message))
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "unexpected verdict"))
		}
	}
}
