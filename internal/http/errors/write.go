package errors

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/ji-devs/ji-cloud-sub012/internal/observability/logger"
)

// errorResponse controla exactamente qué campos se envían al cliente.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteError escribe err como {code, message, detail?}. Los errores que no son
// *AppError se escriben como internal.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromDomain(err)
	if appErr == nil {
		appErr = ErrInternal
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	})
}

// Respond loguea la causa de los 5xx con el logger del request y escribe el error.
func Respond(w http.ResponseWriter, r *http.Request, err error) {
	appErr := FromDomain(err)
	if appErr != nil && appErr.HTTPStatus >= 500 {
		logger.From(r.Context()).Error("request failed",
			logger.String("code", appErr.Code),
			logger.Err(appErr.Err),
		)
	}
	WriteError(w, appErr)
}
