package jwt

import "errors"

// Errores de verificación. Tanto las aserciones del issuer como los tokens
// locales se reducen a estos valores; el extractor HTTP los mapea a 401.
var (
	ErrMalformed       = errors.New("jwt: malformed token")
	ErrUnknownKey      = errors.New("jwt: unknown signing key")
	ErrBadSignature    = errors.New("jwt: bad signature")
	ErrExpired         = errors.New("jwt: token expired")
	ErrWrongAudience   = errors.New("jwt: wrong audience")
	ErrWrongIssuer     = errors.New("jwt: wrong issuer")
	ErrVersionMismatch = errors.New("jwt: session version mismatch")
	ErrWrongKind       = errors.New("jwt: wrong token kind")
	ErrRevoked         = errors.New("jwt: token revoked")
)
