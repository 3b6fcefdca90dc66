package errors

import (
	"errors"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
	jwtx "github.com/ji-devs/ji-cloud-sub012/internal/jwt"
	"github.com/ji-devs/ji-cloud-sub012/internal/media"
)

type mapping struct {
	target error
	to     *AppError
	// detail se expone al cliente; vacío = sin detalle
	detail string
}

// El orden importa: media envuelve errores de repositorio con errors.Join.
var domainErrors = []mapping{
	{jwtx.ErrMalformed, ErrAuthInvalid, "malformed"},
	{jwtx.ErrUnknownKey, ErrAuthInvalid, "unknown_key"},
	{jwtx.ErrBadSignature, ErrAuthInvalid, "bad_signature"},
	{jwtx.ErrExpired, ErrAuthInvalid, "expired"},
	{jwtx.ErrWrongAudience, ErrAuthInvalid, "wrong_audience"},
	{jwtx.ErrWrongIssuer, ErrAuthInvalid, "wrong_issuer"},
	{jwtx.ErrVersionMismatch, ErrAuthInvalid, "version_mismatch"},
	{jwtx.ErrWrongKind, ErrAuthInvalid, "wrong_kind"},
	{jwtx.ErrRevoked, ErrAuthInvalid, "revoked"},

	{media.ErrUnknownKind, ErrMediaUnknownKind, ""},
	{media.ErrSizeExceeded, ErrMediaSizeExceeded, ""},
	{media.ErrInvalidSize, ErrMediaInvalidSize, ""},
	{media.ErrContentType, ErrMediaContentType, ""},
	{media.ErrInvalidKey, ErrMediaInvalidKey, ""},
	{media.ErrNotFound, ErrNotFound, ""},
	{media.ErrForbidden, ErrForbidden, ""},
	{media.ErrInUse, ErrMediaInUse, ""},
	{media.ErrKeyExists, ErrConflict, "key exists"},
	{media.ErrStoreUpstream, ErrUpstream, "object store"},

	{repository.ErrNotFound, ErrNotFound, ""},
	{repository.ErrConflict, ErrConflict, ""},
	{repository.ErrInUse, ErrConflict, "in use"},
	{repository.ErrInvalidInput, ErrBadRequest, ""},
	{repository.ErrAlreadyUsed, ErrAuthInvalid, "revoked"},
	{repository.ErrRevoked, ErrAuthInvalid, "revoked"},
	{repository.ErrNoDatabase, ErrServiceUnavailable, "database"},
}

// FromDomain traduce cualquier error a un AppError. Un *AppError se devuelve
// tal cual; lo desconocido es internal conservando la causa para logs.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, m := range domainErrors {
		if errors.Is(err, m.target) {
			out := m.to.WithCause(err)
			if m.detail != "" {
				out.Detail = m.detail
			}
			return out
		}
	}
	return ErrInternal.WithCause(err)
}
