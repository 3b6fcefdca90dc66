// Package media contiene los DTOs de /v1/media.
package media

// UploadRequest es el body de POST /v1/media/upload.
type UploadRequest struct {
	Kind        string `json:"kind"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}
