package media

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewKey compone "<kind>/<yyyy>/<mm>/<uuid>". Cada subida obtiene una key nueva.
func NewKey(kind Kind, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%s", kind, at.Year(), int(at.Month()), uuid.New())
}

// ParseKey valida la forma de la key y devuelve su kind.
func ParseKey(key string) (Kind, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 4 {
		return "", ErrInvalidKey
	}
	kind, err := ParseKind(parts[0])
	if err != nil {
		return "", ErrInvalidKey
	}
	if y, err := strconv.Atoi(parts[1]); err != nil || len(parts[1]) != 4 || y < 2000 {
		return "", ErrInvalidKey
	}
	if m, err := strconv.Atoi(parts[2]); err != nil || len(parts[2]) != 2 || m < 1 || m > 12 {
		return "", ErrInvalidKey
	}
	if _, err := uuid.Parse(parts[3]); err != nil {
		return "", ErrInvalidKey
	}
	return kind, nil
}
