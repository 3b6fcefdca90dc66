// Package media firma URLs de subida/bajada contra el object store y
// registra las keys emitidas. Los bytes del cliente nunca pasan por la API.
package media

import (
	"errors"
	"mime"
	"strings"
)

// Kind es el tipo de media; define tope de tamaño y content types aceptados.
type Kind string

const (
	KindUserProfile  Kind = "user_profile"
	KindImageLibrary Kind = "image_library"
	KindAudio        Kind = "audio"
	KindPDF          Kind = "pdf"
	KindAnimation    Kind = "animation"
)

const mb = 1 << 20

var (
	ErrUnknownKind   = errors.New("media: unknown kind")
	ErrSizeExceeded  = errors.New("media: declared size exceeds kind limit")
	ErrInvalidSize   = errors.New("media: declared size must be positive")
	ErrContentType   = errors.New("media: content type not allowed for kind")
	ErrInvalidKey    = errors.New("media: invalid key")
	ErrNotFound      = errors.New("media: not found")
	ErrForbidden     = errors.New("media: not owner")
	ErrInUse         = errors.New("media: key is referenced")
	ErrKeyExists     = errors.New("media: key already exists")
	ErrStoreUpstream = errors.New("media: object store failure")
)

type kindRule struct {
	maxSize      int64
	contentTypes []string
}

var images = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

var rules = map[Kind]kindRule{
	KindUserProfile:  {maxSize: 20 * mb, contentTypes: images},
	KindImageLibrary: {maxSize: 20 * mb, contentTypes: images},
	KindAudio:        {maxSize: 50 * mb, contentTypes: []string{"audio/mpeg", "audio/mp4", "audio/ogg", "audio/wav", "audio/webm"}},
	KindPDF:          {maxSize: 100 * mb, contentTypes: []string{"application/pdf"}},
	KindAnimation:    {maxSize: 200 * mb, contentTypes: []string{"image/gif", "image/webp", "video/mp4", "video/webm"}},
}

// ParseKind valida el nombre de kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimSpace(s))
	if _, ok := rules[k]; !ok {
		return "", ErrUnknownKind
	}
	return k, nil
}

func (k Kind) MaxSize() int64 { return rules[k].maxSize }

// CheckUpload valida tamaño declarado y content type. Devuelve el content type normalizado.
func (k Kind) CheckUpload(contentType string, size int64) (string, error) {
	rule, ok := rules[k]
	if !ok {
		return "", ErrUnknownKind
	}
	if size <= 0 {
		return "", ErrInvalidSize
	}
	if size > rule.maxSize {
		return "", ErrSizeExceeded
	}
	ct, ok := normalizeContentType(contentType)
	if !ok {
		return "", ErrContentType
	}
	for _, allowed := range rule.contentTypes {
		if ct == allowed {
			return ct, nil
		}
	}
	return "", ErrContentType
}

func normalizeContentType(s string) (string, bool) {
	mt, _, err := mime.ParseMediaType(s)
	if err != nil {
		return "", false
	}
	return strings.ToLower(mt), true
}
