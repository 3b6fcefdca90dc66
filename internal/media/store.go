package media

import (
	"context"
	"fmt"
	"time"

	"github.com/ji-devs/ji-cloud-sub012/internal/config"
)

// SignedRequest es una URL firmada más los headers que el cliente debe enviar tal cual.
type SignedRequest struct {
	URL     string
	Headers map[string]string
}

// Store abstrae el object store (S3 o GCS).
type Store interface {
	// PresignPut firma un PUT limitado al content type y tamaño declarados.
	PresignPut(ctx context.Context, key, contentType string, size int64, ttl time.Duration) (SignedRequest, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Delete no falla si el objeto no existe.
	Delete(ctx context.Context, key string) error
	// PutIfAbsent sube sólo si la key no existe; ErrKeyExists en caso contrario.
	PutIfAbsent(ctx context.Context, key string, body []byte, contentType string) error
}

// NewStore construye el backend según OBJECT_STORE_PROVIDER.
func NewStore(ctx context.Context, cfg *config.Config) (Store, error) {
	oc := cfg.ObjectStore
	switch oc.Provider {
	case "", "s3":
		return NewS3Store(S3Config{
			Endpoint:     oc.Endpoint,
			Region:       oc.Region,
			Bucket:       oc.Bucket,
			AccessKey:    oc.AccessKey,
			Secret:       oc.Secret,
			UsePathStyle: oc.UsePathStyle,
		}), nil
	case "gcs":
		return NewGCSStore(ctx, GCSConfig{
			Bucket:          oc.Bucket,
			CredentialsFile: oc.GCSCredentials,
			Endpoint:        oc.Endpoint,
		})
	default:
		return nil, fmt.Errorf("media: unsupported provider %q", oc.Provider)
	}
}
