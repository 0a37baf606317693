package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// submissions are documents and archives, so they are stored as raw assets.
const cloudinaryResourceType = "raw"

// CloudinaryConfig contains credentials required to talk to Cloudinary.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Cloudinary stores objects as Cloudinary raw assets keyed by public id.
type Cloudinary struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// NewCloudinary constructs a Cloudinary-backed object store.
func NewCloudinary(cfg CloudinaryConfig, logger zerolog.Logger) (*Cloudinary, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Cloudinary{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "cloudinary_storage").Logger(),
	}, nil
}

// Put uploads the object under key and returns its secure URL.
func (s *Cloudinary) Put(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	publicID, err := s.publicID(key)
	if err != nil {
		return "", err
	}

	result, err := s.client.Upload.Upload(ctx, reader, uploader.UploadParams{
		PublicID:     publicID,
		ResourceType: cloudinaryResourceType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("failed to upload asset: %s", result.Error.Message)
	}
	if result.SecureURL == "" {
		return "", errors.New("failed to upload asset: empty url returned")
	}

	s.logger.Info().
		Str("public_id", result.PublicID).
		Str("content_type", contentType).
		Int("bytes", result.Bytes).
		Msg("object uploaded to cloudinary")

	return result.SecureURL, nil
}

// Delete removes the object stored under key.
func (s *Cloudinary) Delete(ctx context.Context, key string) error {
	publicID, err := s.publicID(key)
	if err != nil {
		return err
	}

	result, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: cloudinaryResourceType,
	})
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	if result.Error.Message != "" {
		return fmt.Errorf("failed to delete asset: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", publicID).Str("result", result.Result).Msg("object deleted from cloudinary")
	return nil
}

func (s *Cloudinary) publicID(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	if s.folder == "" {
		return cleaned, nil
	}
	return s.folder + "/" + cleaned, nil
}
