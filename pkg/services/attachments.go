package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/config"
)

// ErrStorageDisabled is returned when no object store is configured.
var ErrStorageDisabled = errors.New("attachment storage is not configured")

// Attachment purposes, used as the first segment of the object key.
const (
	AttachmentPurposeRemark    = "remarks"
	AttachmentPurposeGrievance = "grievances"
)

var allowedAttachmentTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// ObjectPresigner issues presigned upload URLs. *minio.Client satisfies it.
type ObjectPresigner interface {
	PresignedPutObject(ctx context.Context, bucketName, objectName string, expires time.Duration) (*url.URL, error)
}

// UploadTicket tells the client where to PUT a file and which reference
// to quote afterwards in a workflow action or grievance.
type UploadTicket struct {
	UploadURL     string    `json:"upload_url"`
	AttachmentRef string    `json:"attachment_ref"`
	ContentType   string    `json:"content_type"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// AttachmentService hands out presigned uploads for supporting documents.
type AttachmentService interface {
	CreateUpload(ctx context.Context, purpose, filename string) (*UploadTicket, error)
}

type attachmentService struct {
	presigner ObjectPresigner
	bucket    string
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttachmentService creates an AttachmentService. A nil presigner
// yields a service whose uploads fail with ErrStorageDisabled.
func NewAttachmentService(presigner ObjectPresigner, cfg config.StorageConfig, logger *zap.Logger) AttachmentService {
	return &attachmentService{
		presigner: presigner,
		bucket:    cfg.Bucket,
		ttl:       cfg.UploadTTL,
		logger:    logger.Named("attachments"),
		now:       time.Now,
	}
}

var _ AttachmentService = (*attachmentService)(nil)

func (s *attachmentService) CreateUpload(ctx context.Context, purpose, filename string) (*UploadTicket, error) {
	if s.presigner == nil {
		return nil, ErrStorageDisabled
	}
	if purpose != AttachmentPurposeRemark && purpose != AttachmentPurposeGrievance {
		return nil, fmt.Errorf("%w: unknown attachment purpose %q", apperrors.ErrValidation, purpose)
	}

	ext := strings.ToLower(path.Ext(filename))
	contentType, ok := allowedAttachmentTypes[ext]
	if !ok {
		return nil, fmt.Errorf("%w: only pdf, jpg and png attachments are accepted", apperrors.ErrValidation)
	}

	now := s.now().UTC()
	key := fmt.Sprintf("%s/%s/%s%s", purpose, now.Format("2006/01"), uuid.NewString(), ext)

	u, err := s.presigner.PresignedPutObject(ctx, s.bucket, key, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("%w: presign upload: %v", apperrors.ErrTransientStore, err)
	}

	s.logger.Debug("Issued attachment upload", zap.String("object", key))

	return &UploadTicket{
		UploadURL:     u.String(),
		AttachmentRef: key,
		ContentType:   contentType,
		ExpiresAt:     now.Add(s.ttl),
	}, nil
}
