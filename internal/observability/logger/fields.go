package logger

import "go.uber.org/zap"

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// DurationMs crea un campo para la duración en milisegundos.
func DurationMs(v int64) zap.Field {
	return zap.Int64("duration_ms", v)
}

// Bytes crea un campo para los bytes de respuesta.
func Bytes(v int) zap.Field {
	return zap.Int("bytes", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - NEGOCIO
// =================================================================================

// UserID crea un campo para el ID del usuario.
func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

// Principal crea un campo para el tipo de principal (anonymous, user, service_account).
func Principal(v string) zap.Field {
	return zap.String("principal", v)
}

// TokenKind crea un campo para el kind de token (short, refresh, identity...).
func TokenKind(v string) zap.Field {
	return zap.String("token_kind", v)
}

// Kid crea un campo para el key id de un JWK.
func Kid(v string) zap.Field {
	return zap.String("kid", v)
}

// MediaKey crea un campo para una key de object storage.
func MediaKey(v string) zap.Field {
	return zap.String("media_key", v)
}

// MediaKind crea un campo para el kind de media.
func MediaKind(v string) zap.Field {
	return zap.String("media_kind", v)
}

// ObjectID crea un campo para el objectID de un registro de búsqueda.
func ObjectID(v string) zap.Field {
	return zap.String("object_id", v)
}

// OutboxID crea un campo para el id de fila del outbox.
func OutboxID(v int64) zap.Field {
	return zap.Int64("outbox_id", v)
}

// Attempt crea un campo para el número de intento.
func Attempt(v int) zap.Field {
	return zap.Int("attempt", v)
}

// Email crea un campo para el email (usar con cuidado en prod).
func Email(v string) zap.Field {
	return zap.String("email", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer crea un campo para la capa (handler, service, repository).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// =================================================================================
// CAMPOS ESTÁNDAR - DATOS
// =================================================================================

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// ID crea un campo genérico para un ID.
func ID(v string) zap.Field {
	return zap.String("id", v)
}

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}
