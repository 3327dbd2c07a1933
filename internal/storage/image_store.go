package storage

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/pasindubuddhika1999/findmyphone/internal/config"
)

// ImageUpload is one image received from a client.
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// StoredImage is the stable reference returned by the image store.
type StoredImage struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// IImageStore persists listing images in object storage.
type IImageStore interface {
	Upload(ctx context.Context, img ImageUpload) (*StoredImage, error)
	Delete(ctx context.Context, publicID string) error
	Backend() string
}

// allowedImageTypes maps accepted MIME types to the extension used for object keys.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// CheckImage returns a human-readable reason when the upload is not an acceptable image.
// The declared content type is not trusted; the bytes are sniffed.
func CheckImage(img ImageUpload, maxBytes int64) error {
	if len(img.Data) == 0 {
		return fmt.Errorf("%s is empty", displayName(img))
	}
	if maxBytes > 0 && int64(len(img.Data)) > maxBytes {
		return fmt.Errorf("%s exceeds the %d MB limit", displayName(img), maxBytes/(1024*1024))
	}
	sniffed := http.DetectContentType(img.Data)
	if _, ok := allowedImageTypes[sniffed]; !ok {
		return fmt.Errorf("%s is not a supported image (jpeg, png, webp or gif)", displayName(img))
	}
	return nil
}

// extensionFor picks the key extension from the sniffed type, falling back to the file name.
func extensionFor(img ImageUpload) string {
	if ext, ok := allowedImageTypes[http.DetectContentType(img.Data)]; ok {
		return ext
	}
	return strings.ToLower(path.Ext(img.Filename))
}

func displayName(img ImageUpload) string {
	if img.Filename == "" {
		return "image"
	}
	return img.Filename
}

// NewImageStore builds the backend selected by IMAGE_STORAGE.
func NewImageStore(ctx context.Context, cfg *config.Config) (IImageStore, error) {
	switch cfg.ImageStorage {
	case config.ImageStorageCloudinary:
		return NewCloudinaryImageStore(cfg)
	case config.ImageStorageS3, "":
		return NewS3Storage(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown image storage backend %q", cfg.ImageStorage)
}
