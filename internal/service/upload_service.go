package service

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-courseware-api/internal/observability"
)

const submissionUploadPrefix = "submission-upload"

// ObjectStorage abstracts upload destinations.
type ObjectStorage interface {
	Put(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// StoredObject describes a file accepted for a submission attempt.
type StoredObject struct {
	Key       string
	URL       string
	MimeType  string
	SizeBytes int64
	Checksum  string
}

// UploadService validates submission files and writes them to object storage.
type UploadService interface {
	Store(ctx context.Context, studentID, assignmentID uint, file *multipart.FileHeader) (StoredObject, error)
	Discard(ctx context.Context, key string)
}

type uploadService struct {
	storage ObjectStorage
	logger  zerolog.Logger
	maxSize int64
	timeout time.Duration
	tracer  trace.Tracer
}

// NewUploadService constructs an upload service.
func NewUploadService(storage ObjectStorage, maxSizeMB int, timeout time.Duration, logger zerolog.Logger) UploadService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &uploadService{
		storage: storage,
		logger:  logger.With().Str("component", "upload_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		timeout: timeout,
		tracer:  otel.Tracer("github.com/noah-isme/gema-courseware-api/internal/service/upload"),
	}
}

func (s *uploadService) Store(ctx context.Context, studentID, assignmentID uint, file *multipart.FileHeader) (StoredObject, error) {
	ctx, span := s.tracer.Start(ctx, "upload.store")
	defer span.End()

	span.SetAttributes(attribute.Int64("upload.max_bytes", s.maxSize))
	if file == nil {
		err := fmt.Errorf("%w: file is required", ErrInvalidSubmission)
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return StoredObject{}, err
	}
	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	if file.Size > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return StoredObject{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return StoredObject{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return StoredObject{}, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(buf.Len()) > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return StoredObject{}, ErrUploadTooLarge
	}

	detected := mimetype.Detect(buf.Bytes())
	fileType := normalizeMime(detected.String())
	span.SetAttributes(attribute.String("upload.detected_mime", fileType))
	if !isAllowedType(fileType) {
		observability.UploadRejected().WithLabelValues("type").Inc()
		span.RecordError(ErrUploadTypeNotAllowed)
		span.SetStatus(codes.Error, "type not allowed")
		return StoredObject{}, ErrUploadTypeNotAllowed
	}

	if err := s.scan(buf.Bytes(), fileType); err != nil {
		observability.UploadRejected().WithLabelValues("scan").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return StoredObject{}, err
	}

	checksum := sha256.Sum256(buf.Bytes())
	key := objectKey(studentID, assignmentID, file.Filename)
	span.SetAttributes(
		attribute.String("upload.key", key),
		attribute.Int64("upload.size_bytes", int64(buf.Len())),
	)

	putCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	url, err := s.storage.Put(putCtx, key, bytes.NewReader(buf.Bytes()), detected.String())
	if err != nil {
		observability.UploadRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return StoredObject{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	span.SetStatus(codes.Ok, "stored")
	s.logger.Info().Str("key", key).Int("bytes", buf.Len()).Msg("submission file stored")

	return StoredObject{
		Key:       key,
		URL:       url,
		MimeType:  fileType,
		SizeBytes: int64(buf.Len()),
		Checksum:  hex.EncodeToString(checksum[:]),
	}, nil
}

// Discard deletes a stored object whose attempt was never committed.
func (s *uploadService) Discard(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to delete orphaned upload")
	}
}

func (s *uploadService) scan(payload []byte, mime string) error {
	if strings.Contains(mime, "zip") {
		reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
		if err != nil {
			return ErrUploadScanFailed
		}
		var totalUncompressed uint64
		for _, f := range reader.File {
			totalUncompressed += f.UncompressedSize64
			if totalUncompressed > uint64(s.maxSize*20) {
				return fmt.Errorf("zip archive uncompressed size too large: %w", ErrUploadScanFailed)
			}
		}
	}
	return nil
}

func objectKey(studentID, assignmentID uint, filename string) string {
	return fmt.Sprintf("%s/%d/%d/%s-%s", submissionUploadPrefix, studentID, assignmentID, uuid.NewString(), sanitizeFileName(filename))
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}

func normalizeMime(m string) string {
	lower, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(m)), ";")
	lower = strings.TrimSpace(lower)
	if strings.HasPrefix(lower, "image/") {
		return "image"
	}
	switch lower {
	case "application/zip", "application/x-zip-compressed":
		return "application/zip"
	default:
		return lower
	}
}

func isAllowedType(m string) bool {
	switch m {
	case "image", "application/pdf", "application/zip", "text/plain":
		return true
	default:
		return false
	}
}

