// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// ClipService additionally talks to the object bucket: the database holds the
// clip rows, the bucket holds the bytes, and this package is the only place
// that keeps the two in step.
//
// Services accept primitives and plain structs, never *http.Request, so the
// same rules apply to the HTTP API, the CLI and the background jobs.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sakif/cliplet/internal/apperror"
	"github.com/sakif/cliplet/internal/metrics"
	"github.com/sakif/cliplet/internal/model"
	"github.com/sakif/cliplet/internal/repository"
	"github.com/sakif/cliplet/internal/storage"
)

const (
	MaxUploadSize = 10 << 20 // 10 MiB
	MaxTextLength = 1 << 20

	// UploadURLTTL bounds how long a presigned PUT stays usable.
	UploadURLTTL = 10 * time.Minute
	// ReadURLTTL bounds every presigned GET handed out by list and detail.
	ReadURLTTL = 30 * time.Minute
)

var validate = newValidator()

// newValidator reports fields by their JSON names so error messages match
// what the client sent.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateInput turns the first validator failure into an AppError.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		fe := vErrs[0]
		return apperror.ValidationFailed(fe.Field(),
			fmt.Sprintf("field %s failed the %s rule", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("service: validating input: %w", err)
}

// CreateClipInput is the body of POST /api/clips. Type decides which of the
// remaining fields are read.
type CreateClipInput struct {
	Type             string `json:"type"             validate:"required,oneof=text image video audio document file"`
	Content          string `json:"content"          validate:"required_if=Type text,max=1048576"`
	FileKey          string `json:"fileKey"          validate:"required_unless=Type text,max=512"`
	FileSize         int64  `json:"fileSize"         validate:"required_unless=Type text,gte=0"`
	MimeType         string `json:"mimeType"         validate:"max=255"`
	OriginalFileName string `json:"originalFileName" validate:"required_unless=Type text,max=255"`
	Width            *int   `json:"width"            validate:"omitempty,gt=0"`
	Height           *int   `json:"height"           validate:"omitempty,gt=0"`
	Duration         int    `json:"duration"         validate:"gte=0"`
}

// ClipSummary is one entry of the clip list. Content is the text itself or a
// URL for the stored object.
type ClipSummary struct {
	ID        string         `json:"id"`
	Type      model.ClipType `json:"type"`
	Content   string         `json:"content"`
	FileName  string         `json:"fileName,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

type ClipMetadata struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType,omitempty"`
	FileName string `json:"fileName"`
	Width    *int   `json:"width,omitempty"`
	Height   *int   `json:"height,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

// ClipDetail is a summary plus the stored object's metadata. Metadata is nil
// for text clips.
type ClipDetail struct {
	ClipSummary
	Metadata *ClipMetadata `json:"metadata,omitempty"`
}

type UploadURL struct {
	UploadURL string `json:"uploadUrl"`
	FileKey   string `json:"fileKey"`
}

// Download is an open object ready to stream. The caller closes Object.Body.
type Download struct {
	Object   *storage.Object
	FileName string
}

// ClipService enforces ownership and limits and keeps rows and bucket objects
// consistent.
type ClipService struct {
	repo    repository.ClipRepository
	bucket  storage.Bucket
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewClipService(repo repository.ClipRepository, bucket storage.Bucket, m *metrics.Metrics, logger *slog.Logger) *ClipService {
	return &ClipService{
		repo:    repo,
		bucket:  bucket,
		metrics: m,
		logger:  logger,
	}
}

// CreateUploadURL reserves a key in the caller's namespace and presigns a PUT
// for it. The size ceiling is checked before the bucket is contacted.
func (s *ClipService) CreateUploadURL(ctx context.Context, userID string, size int64, mimeType string) (*UploadURL, error) {
	if size > MaxUploadSize {
		return nil, apperror.PayloadTooLarge(size, MaxUploadSize)
	}
	if size <= 0 {
		return nil, apperror.ValidationFailed("originalFileSize", "file size must be positive")
	}
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		return nil, apperror.ValidationFailed("originalMimeType", "mime type is required")
	}

	key := userID + "/" + uuid.NewString()
	u, err := s.bucket.PresignPut(ctx, key, mimeType, size, UploadURLTTL)
	if err != nil {
		s.logger.Error("presigning upload failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream("storage", err)
	}

	s.metrics.UploadURLsIssued.Inc()
	s.logger.Info("upload url issued",
		slog.String("userID", userID),
		slog.String("key", key),
		slog.Int64("size", size),
	)
	return &UploadURL{UploadURL: u, FileKey: key}, nil
}

// CreateClip validates in and stores the clip. Binary clips must reference a
// key inside the caller's namespace.
func (s *ClipService) CreateClip(ctx context.Context, userID string, in CreateClipInput) (*ClipSummary, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	t, err := model.ParseClipType(in.Type)
	if err != nil {
		return nil, apperror.ValidationFailed("type", "unsupported clip type")
	}

	if t.IsBinary() {
		if in.FileSize > MaxUploadSize {
			return nil, apperror.PayloadTooLarge(in.FileSize, MaxUploadSize)
		}
		if !strings.HasPrefix(in.FileKey, userID+"/") {
			return nil, apperror.Forbidden("file key does not belong to the caller")
		}
		if t != model.ClipFile && strings.TrimSpace(in.MimeType) == "" {
			return nil, apperror.ValidationFailed("mimeType", "mime type is required")
		}
	}

	clip := model.NewClip(userID, buildPayload(t, in))
	if err := s.repo.CreateClip(ctx, clip); err != nil {
		s.logger.Error("failed to create clip",
			slog.String("userID", userID),
			slog.String("type", string(t)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating clip: %w", err)
	}

	s.metrics.ClipsCreated.WithLabelValues(string(t)).Inc()
	s.logger.Info("clip created",
		slog.String("id", clip.ID),
		slog.String("type", string(t)),
	)

	summary := ClipSummary{ID: clip.ID, Type: clip.Type, CreatedAt: clip.CreatedAt}
	if obj := clip.Object(); obj != nil {
		summary.FileName = obj.OriginalName
		summary.Content = s.bucket.PublicURL(obj.Key)
		if summary.Content == "" {
			if summary.Content, err = s.readURL(ctx, obj.Key); err != nil {
				return nil, err
			}
		}
	} else {
		summary.Content = clip.Payload.(*model.Text).Content
	}
	return &summary, nil
}

func buildPayload(t model.ClipType, in CreateClipInput) model.Payload {
	obj := model.StoredObject{
		Key:          in.FileKey,
		Size:         in.FileSize,
		MimeType:     strings.TrimSpace(in.MimeType),
		OriginalName: in.OriginalFileName,
	}
	switch t {
	case model.ClipText:
		return &model.Text{Content: in.Content}
	case model.ClipImage:
		return &model.Image{StoredObject: obj, Width: in.Width, Height: in.Height}
	case model.ClipVideo:
		return &model.Video{StoredObject: obj, Width: in.Width, Height: in.Height, Duration: in.Duration}
	case model.ClipAudio:
		return &model.Audio{StoredObject: obj, Duration: in.Duration}
	case model.ClipDocument:
		return &model.Document{StoredObject: obj}
	}
	obj.MimeType = ""
	return &model.File{StoredObject: obj}
}

// ListClips returns the caller's clips. Every binary entry gets a newly
// signed read URL, so two calls never share URLs.
func (s *ClipService) ListClips(ctx context.Context, userID, filter, sort string) ([]ClipSummary, error) {
	f, err := model.ParseFilter(strings.TrimSpace(filter))
	if err != nil {
		return nil, apperror.ValidationFailed("filter", err.Error())
	}

	clips, err := s.repo.ListClips(ctx, userID, repository.ListOptions{
		Type:  f.ClipType(),
		Order: model.ParseSort(strings.TrimSpace(sort)),
	})
	if err != nil {
		s.logger.Error("failed to list clips",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing clips: %w", err)
	}

	out := make([]ClipSummary, 0, len(clips))
	for _, c := range clips {
		summary, err := s.summarize(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

// GetClip returns the detail view. A clip owned by someone else is reported
// as not found.
func (s *ClipService) GetClip(ctx context.Context, userID, id string) (*ClipDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "clip ID is required")
	}

	clip, err := s.repo.GetClip(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	summary, err := s.summarize(ctx, clip)
	if err != nil {
		return nil, err
	}
	return &ClipDetail{ClipSummary: summary, Metadata: metadataFor(clip.Payload)}, nil
}

func (s *ClipService) summarize(ctx context.Context, c *model.Clip) (ClipSummary, error) {
	summary := ClipSummary{ID: c.ID, Type: c.Type, CreatedAt: c.CreatedAt}
	obj := c.Object()
	if obj == nil {
		summary.Content = c.Payload.(*model.Text).Content
		return summary, nil
	}

	u, err := s.readURL(ctx, obj.Key)
	if err != nil {
		return ClipSummary{}, err
	}
	summary.Content = u
	summary.FileName = obj.OriginalName
	return summary, nil
}

func (s *ClipService) readURL(ctx context.Context, key string) (string, error) {
	u, err := s.bucket.PresignGet(ctx, key, ReadURLTTL)
	if err != nil {
		s.logger.Error("presigning read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return "", apperror.Upstream("storage", err)
	}
	return u, nil
}

func metadataFor(p model.Payload) *ClipMetadata {
	var m ClipMetadata
	switch v := p.(type) {
	case *model.Image:
		m.Width, m.Height = v.Width, v.Height
	case *model.Video:
		m.Width, m.Height, m.Duration = v.Width, v.Height, v.Duration
	case *model.Audio:
		m.Duration = v.Duration
	case *model.Document, *model.File:
	default:
		return nil
	}
	obj := p.(interface{ Stored() *model.StoredObject }).Stored()
	m.Size = obj.Size
	m.MimeType = obj.MimeType
	m.FileName = obj.OriginalName
	return &m
}

// DeleteClip removes the bucket object first and then the rows. A failed
// bucket delete is logged and counted but does not stop the row delete; the
// orphan sweep reclaims the object later.
func (s *ClipService) DeleteClip(ctx context.Context, userID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "clip ID is required")
	}

	clip, err := s.repo.GetClip(ctx, userID, id)
	if err != nil {
		return err
	}

	if obj := clip.Object(); obj != nil {
		err := s.bucket.Delete(ctx, obj.Key)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.metrics.StorageDeleteFailures.Inc()
			s.logger.Warn("bucket delete failed, removing row anyway",
				slog.String("id", id),
				slog.String("key", obj.Key),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.repo.DeleteClip(ctx, userID, id); err != nil {
		return err
	}

	s.metrics.ClipsDeleted.Inc()
	s.logger.Info("clip deleted", slog.String("id", id))
	return nil
}

// OpenDownload opens the object behind a binary clip. Text clips have
// nothing to download and are reported as not found.
func (s *ClipService) OpenDownload(ctx context.Context, userID, id string) (*Download, error) {
	clip, err := s.repo.GetClip(ctx, userID, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	obj := clip.Object()
	if obj == nil {
		return nil, apperror.NotFound("download", id)
	}

	o, err := s.bucket.Open(ctx, obj.Key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperror.NotFound("download", id)
	}
	if err != nil {
		return nil, apperror.Upstream("storage", err)
	}
	if o.ContentType == "" {
		o.ContentType = obj.MimeType
	}

	name := obj.OriginalName
	if name == "" {
		name = clip.ID
	}
	return &Download{Object: o, FileName: name}, nil
}
