package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wavecrate/wavecrate-backend/internal/entitlement"
	"github.com/wavecrate/wavecrate-backend/pkg/config"
	"github.com/wavecrate/wavecrate-backend/pkg/db/models"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
	pkgerrors "github.com/wavecrate/wavecrate-backend/pkg/errors"
	"github.com/wavecrate/wavecrate-backend/pkg/logger"
	"github.com/wavecrate/wavecrate-backend/pkg/storage/gcs"
)

type sampleFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Sample, error)
}

type packFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.SamplePack, error)
}

type objectStore interface {
	ReadObject(ctx context.Context, bucket, object, rangeHeader string) (*gcs.Object, error)
	SignedReadURL(bucket, object string, expires time.Duration) (string, error)
	SignedDownloadURL(bucket, object, filename string, expires time.Duration) (string, error)
}

// StreamResult is a proxied object read plus the headers the handler should
// reflect. The caller owns Object.Body.
type StreamResult struct {
	Object      *gcs.Object
	ContentType string
	Filename    string
}

// LinkResponse is a short-lived signed URL for direct storage access.
type LinkResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service issues gated media: proxied streams that hide the backing storage,
// and signed URLs for direct fetches. Previews skip the entitlement check,
// everything else goes through the resolver.
type Service interface {
	StreamPreview(ctx context.Context, userID, sampleID uuid.UUID, rangeHeader string) (*StreamResult, error)
	Stream(ctx context.Context, userID, sampleID uuid.UUID, format *enums.SampleFormat, rangeHeader string) (*StreamResult, error)
	DownloadURL(ctx context.Context, userID, sampleID uuid.UUID, format *enums.SampleFormat) (*LinkResponse, error)
	StreamURL(ctx context.Context, userID, sampleID uuid.UUID, format *enums.SampleFormat) (*LinkResponse, error)
	PreviewURL(ctx context.Context, userID, sampleID uuid.UUID) (*LinkResponse, error)
}

type ServiceParams struct {
	Resolver entitlement.Resolver
	Samples  sampleFinder
	Packs    packFinder
	Storage  objectStore
	Config   config.DeliveryConfig
	Logger   *logger.Logger
}

type service struct {
	resolver entitlement.Resolver
	samples  sampleFinder
	packs    packFinder
	storage  objectStore
	cfg      config.DeliveryConfig
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Resolver == nil || params.Samples == nil || params.Packs == nil || params.Storage == nil {
		return nil, errors.New("delivery: missing service dependencies")
	}
	return &service{
		resolver: params.Resolver,
		samples:  params.Samples,
		packs:    params.Packs,
		storage:  params.Storage,
		cfg:      params.Config,
		logg:     params.Logger,
	}, nil
}

// StreamPreview proxies the low-quality rendition. Any authenticated user may
// listen; no purchase is required, but previews of samples in unpublished
// packs stay creator-only.
func (s *service) StreamPreview(ctx context.Context, userID, sampleID uuid.UUID, rangeHeader string) (*StreamResult, error) {
	sample, err := s.previewSample(ctx, userID, sampleID)
	if err != nil {
		return nil, err
	}
	return s.openObject(ctx, PreviewSelection(sample.ID), sample.Title, rangeHeader)
}

// Stream proxies a full-quality rendition to an entitled user, honoring an
// optional Range header.
func (s *service) Stream(ctx context.Context, userID, sampleID uuid.UUID, format *enums.SampleFormat, rangeHeader string) (*StreamResult, error) {
	resolution, err := s.resolve(ctx, userID, sampleID, format)
	if err != nil {
		return nil, err
	}
	return s.openObject(ctx, FormatSelection(resolution.Sample.ID, format), resolution.Sample.Title, rangeHeader)
}

// DownloadURL signs a short-lived attachment URL for an entitled user.
func (s *service) DownloadURL(ctx context.Context, userID, sampleID uuid.UUID, format *enums.SampleFormat) (*LinkResponse, error) {
	resolution, err := s.resolve(ctx, userID, sampleID, format)
	if err != nil {
		return nil, err
	}
	selection := FormatSelection(resolution.Sample.ID, format)
	url, err := s.storage.SignedDownloadURL("", selection.Key, selection.Filename(resolution.Sample.Title), s.cfg.DownloadURLExpiry)
	if err != nil {
		return nil, s.storageError(ctx, err)
	}
	return &LinkResponse{URL: url, ExpiresAt: time.Now().Add(s.cfg.DownloadURLExpiry)}, nil
}

// StreamURL signs a longer-lived URL for streaming sessions.
func (s *service) StreamURL(ctx context.Context, userID, sampleID uuid.UUID, format *enums.SampleFormat) (*LinkResponse, error) {
	resolution, err := s.resolve(ctx, userID, sampleID, format)
	if err != nil {
		return nil, err
	}
	selection := FormatSelection(resolution.Sample.ID, format)
	url, err := s.storage.SignedReadURL("", selection.Key, s.cfg.StreamURLExpiry)
	if err != nil {
		return nil, s.storageError(ctx, err)
	}
	return &LinkResponse{URL: url, ExpiresAt: time.Now().Add(s.cfg.StreamURLExpiry)}, nil
}

// PreviewURL signs a streaming URL for the low-quality rendition, under the
// same visibility rules as StreamPreview.
func (s *service) PreviewURL(ctx context.Context, userID, sampleID uuid.UUID) (*LinkResponse, error) {
	sample, err := s.previewSample(ctx, userID, sampleID)
	if err != nil {
		return nil, err
	}

	selection := PreviewSelection(sample.ID)
	url, err := s.storage.SignedReadURL("", selection.Key, s.cfg.StreamURLExpiry)
	if err != nil {
		return nil, s.storageError(ctx, err)
	}
	return &LinkResponse{URL: url, ExpiresAt: time.Now().Add(s.cfg.StreamURLExpiry)}, nil
}

// previewSample loads the sample for a preview request. Samples inside an
// unpublished pack are hidden from everyone but their creator, with the same
// not-found answer an unknown sample gets.
func (s *service) previewSample(ctx context.Context, userID, sampleID uuid.UUID) (*models.Sample, error) {
	sample, err := s.samples.FindByID(ctx, sampleID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sample not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sample")
	}

	if sample.PackID != nil && sample.CreatorID != userID {
		pack, err := s.packs.FindByID(ctx, *sample.PackID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sample not found")
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pack")
		}
		if pack.Status != enums.PackStatusPublished {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sample not found")
		}
	}
	return sample, nil
}

func (s *service) resolve(ctx context.Context, userID, sampleID uuid.UUID, format *enums.SampleFormat) (*entitlement.Resolution, error) {
	resolution, err := s.resolver.Resolve(ctx, userID, sampleID, format)
	if err != nil {
		return nil, err
	}
	if !resolution.Entitled {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "purchase required")
	}
	return resolution, nil
}

func (s *service) openObject(ctx context.Context, selection Selection, title, rangeHeader string) (*StreamResult, error) {
	object, err := s.storage.ReadObject(ctx, "", selection.Key, rangeHeader)
	if errors.Is(err, gcs.ErrObjectNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "media not found")
	}
	if errors.Is(err, gcs.ErrRangeNotSatisfiable) {
		return nil, pkgerrors.New(pkgerrors.CodeRangeInvalid, "requested range not satisfiable")
	}
	if err != nil {
		return nil, s.storageError(ctx, err)
	}

	contentType := object.ContentType
	if contentType == "" {
		contentType = selection.ContentType
	}
	return &StreamResult{
		Object:      object,
		ContentType: contentType,
		Filename:    selection.Filename(title),
	}, nil
}

// storageError logs the real failure and hands the client a generic message
// so storage paths and bucket names never leak.
func (s *service) storageError(ctx context.Context, err error) error {
	if s.logg != nil {
		s.logg.Error(ctx, "delivery.storage.failed", err)
	}
	return pkgerrors.New(pkgerrors.CodeInternal, "media delivery failed")
}
