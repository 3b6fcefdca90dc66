// Package tokens reúne helpers de valores aleatorios y hashes para credenciales.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// CSRFBytes es el largo del valor CSRF ligado a una sesión.
const CSRFBytes = 16

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewCSRF genera el valor CSRF de una sesión (16 bytes, base64url).
func NewCSRF() (string, error) {
	return GenerateOpaqueToken(CSRFBytes)
}

// SHA256Base64URL devuelve sha256(input) en base64url sin padding (para guardar en config/DB).
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ConstantTimeEqual compara sin filtrar por timing; vacíos nunca son iguales.
func ConstantTimeEqual(a, b string) bool {
	if a == "" || b == "" || len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
