// Package errors define el error estándar de la API (AppError) y su
// serialización. Los paquetes de dominio exponen sentinels; los controllers
// los traducen acá con FromDomain.
package errors

import (
	"fmt"
	"net/http"
)

// Kind es la taxonomía de errores de la API.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindAuthMissing Kind = "auth_missing"
	KindAuthInvalid Kind = "auth_invalid"
	KindForbidden   Kind = "forbidden"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindRateLimited Kind = "rate_limited"
	KindUpstream    Kind = "upstream"
	KindInternal    Kind = "internal"
)

// AppError define la estructura estándar para errores de la aplicación.
type AppError struct {
	Kind       Kind   `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	// Err es la causa; sólo se loguea, nunca se escribe al cliente.
	Err error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// New crea un AppError.
func New(kind Kind, status int, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, HTTPStatus: status}
}

// WithDetail devuelve una COPIA con detalle; no muta las variables base.
func (e *AppError) WithDetail(detail string) *AppError {
	c := *e
	c.Detail = detail
	return &c
}

// WithCause devuelve una COPIA con la causa original.
func (e *AppError) WithCause(err error) *AppError {
	c := *e
	c.Err = err
	return &c
}

// =================================================================================
// CATÁLOGO
// =================================================================================

// 400 / 422
var (
	ErrBadRequest = New(KindValidation, http.StatusBadRequest,
		"validation.request", "La solicitud es inválida.")

	ErrInvalidJSON = New(KindValidation, http.StatusBadRequest,
		"validation.body", "El cuerpo de la solicitud no es un JSON válido.")

	ErrInvalidParameter = New(KindValidation, http.StatusBadRequest,
		"validation.parameter", "Uno de los parámetros es inválido.")

	ErrBodyTooLarge = New(KindValidation, http.StatusRequestEntityTooLarge,
		"validation.body_too_large", "El cuerpo de la solicitud excede el tamaño permitido.")

	ErrMediaUnknownKind = New(KindValidation, http.StatusUnprocessableEntity,
		"media.unknown_kind", "El tipo de media no existe.")

	ErrMediaSizeExceeded = New(KindValidation, http.StatusUnprocessableEntity,
		"media.size_exceeded", "El tamaño declarado supera el máximo para el tipo de media.")

	ErrMediaInvalidSize = New(KindValidation, http.StatusUnprocessableEntity,
		"media.invalid_size", "El tamaño declarado debe ser positivo.")

	ErrMediaContentType = New(KindValidation, http.StatusUnprocessableEntity,
		"media.content_type", "El content type no está permitido para el tipo de media.")

	ErrMediaInvalidKey = New(KindValidation, http.StatusBadRequest,
		"media.invalid_key", "La key de media es inválida.")
)

// 401
var (
	ErrAuthMissing = New(KindAuthMissing, http.StatusUnauthorized,
		"auth.missing", "Se requiere autenticación.")

	ErrAuthInvalid = New(KindAuthInvalid, http.StatusUnauthorized,
		"auth.invalid", "Las credenciales son inválidas o expiraron.")
)

// 403
var (
	ErrForbidden = New(KindForbidden, http.StatusForbidden,
		"forbidden", "No tiene permisos para realizar esta acción.")

	ErrCSRFMismatch = New(KindForbidden, http.StatusForbidden,
		"auth.csrf_mismatch", "Falta el header X-CSRF o no coincide con la sesión.")

	ErrInsufficientScope = New(KindForbidden, http.StatusForbidden,
		"auth.insufficient_scope", "La credencial no tiene los scopes necesarios.")
)

// 404 / 405
var (
	ErrNotFound = New(KindNotFound, http.StatusNotFound,
		"not_found", "El recurso solicitado no fue encontrado.")

	ErrMethodNotAllowed = New(KindValidation, http.StatusMethodNotAllowed,
		"method_not_allowed", "Método no permitido.")
)

// 409
var (
	ErrConflict = New(KindConflict, http.StatusConflict,
		"conflict", "El recurso entra en conflicto con el estado actual.")

	ErrMediaInUse = New(KindConflict, http.StatusConflict,
		"media.in_use", "La key está referenciada por otro recurso.")

	ErrEmailAlreadyVerified = New(KindConflict, http.StatusConflict,
		"user.email_already_verified", "El email ya está verificado.")
)

// 429 / 5xx
var (
	ErrRateLimited = New(KindRateLimited, http.StatusTooManyRequests,
		"rate_limited", "Demasiadas solicitudes, intente más tarde.")

	ErrUpstream = New(KindUpstream, http.StatusBadGateway,
		"upstream", "Un servicio externo no respondió correctamente.")

	ErrServiceUnavailable = New(KindUpstream, http.StatusServiceUnavailable,
		"unavailable", "El servicio no está disponible.")

	ErrInternal = New(KindInternal, http.StatusInternalServerError,
		"internal", "Error interno del servidor.")
)
