package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"

	"github.com/pasindubuddhika1999/findmyphone/internal/config"
)

// Listing images are limited to 800x600 and auto quality on upload.
const cloudinaryListingTransformation = "c_limit,h_600,w_800/q_auto"

type cloudinaryStorage struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryImageStore creates the Cloudinary image store from CLOUDINARY_URL.
func NewCloudinaryImageStore(cfg *config.Config) (IImageStore, error) {
	if cfg.CloudinaryURL == "" {
		return nil, fmt.Errorf("CLOUDINARY_URL is required for cloudinary image storage")
	}
	cld, err := cloudinary.NewFromURL(cfg.CloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise cloudinary: %w", err)
	}
	return &cloudinaryStorage{cld: cld, folder: cfg.CloudinaryFolder}, nil
}

func (s *cloudinaryStorage) Backend() string {
	return config.ImageStorageCloudinary
}

func (s *cloudinaryStorage) Upload(ctx context.Context, img ImageUpload) (*StoredImage, error) {
	overwrite := false
	result, err := s.cld.Upload.Upload(ctx, bytes.NewReader(img.Data), uploader.UploadParams{
		Folder:         s.folder,
		PublicID:       "listing_" + uuid.NewString(),
		ResourceType:   "image",
		Overwrite:      &overwrite,
		Transformation: cloudinaryListingTransformation,
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload failed: %w", err)
	}
	if result.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload rejected: %s", result.Error.Message)
	}
	return &StoredImage{URL: result.SecureURL, PublicID: result.PublicID}, nil
}

func (s *cloudinaryStorage) Delete(ctx context.Context, publicID string) error {
	result, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: "image",
	})
	if err != nil {
		return fmt.Errorf("failed to delete image %s from cloudinary: %w", publicID, err)
	}
	if result.Error.Message != "" {
		return fmt.Errorf("cloudinary refused to delete %s: %s", publicID, result.Error.Message)
	}
	return nil
}
