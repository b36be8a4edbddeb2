package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/wavecrate/wavecrate-backend/internal/delivery"
	"github.com/wavecrate/wavecrate-backend/pkg/db/models"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
	pkgerrors "github.com/wavecrate/wavecrate-backend/pkg/errors"
	"github.com/wavecrate/wavecrate-backend/pkg/logger"
	"github.com/wavecrate/wavecrate-backend/pkg/outbox"
	"github.com/wavecrate/wavecrate-backend/pkg/outbox/payloads"
	"github.com/wavecrate/wavecrate-backend/pkg/pagination"
)

// Actor identifies the authenticated user performing a catalog operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (a Actor) isAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type uploadSigner interface {
	SignedURL(bucket, object, contentType string, expires time.Duration) (string, error)
}

// Service exposes pack and sample catalog operations.
type Service interface {
	CreatePack(ctx context.Context, actor Actor, req CreatePackRequest) (*PackDetail, error)
	UpdatePack(ctx context.Context, actor Actor, packID uuid.UUID, req UpdatePackRequest) (*PackDetail, error)
	PublishPack(ctx context.Context, actor Actor, packID uuid.UUID) (*PackDetail, error)
	ArchivePack(ctx context.Context, actor Actor, packID uuid.UUID) (*PackDetail, error)
	DeletePack(ctx context.Context, actor Actor, packID uuid.UUID) error
	ListCreatorPacks(ctx context.Context, actor Actor) ([]PackSummary, error)
	Earnings(ctx context.Context, actor Actor) (*EarningsSummary, error)

	AddSample(ctx context.Context, actor Actor, packID *uuid.UUID, req CreateSampleRequest) (*SampleSummary, error)
	UpdateSample(ctx context.Context, actor Actor, sampleID uuid.UUID, req UpdateSampleRequest) (*SampleSummary, error)
	DeleteSample(ctx context.Context, actor Actor, sampleID uuid.UUID) error
	PresignUpload(ctx context.Context, actor Actor, sampleID uuid.UUID, req UploadRequest) (*UploadTarget, error)

	ListPublishedPacks(ctx context.Context, params pagination.Params) (*PackPage, error)
	GetPublicPack(ctx context.Context, actor *Actor, packID uuid.UUID) (*PackDetail, error)
	GetPublicSample(ctx context.Context, sampleID uuid.UUID) (*SampleSummary, error)
}

type service struct {
	tx           txRunner
	packs        *PackRepository
	samples      *SampleRepository
	outbox       outboxEmitter
	uploads      uploadSigner
	uploadExpiry time.Duration
	logg         *logger.Logger
}

// ServiceParams bundles the catalog service dependencies. Uploads is
// optional; without a signer PresignUpload reports the capability missing.
type ServiceParams struct {
	TxRunner        txRunner
	PackRepo        *PackRepository
	SampleRepo      *SampleRepository
	Outbox          outboxEmitter
	Uploads         uploadSigner
	UploadURLExpiry time.Duration
	Logger          *logger.Logger
}

// NewService builds the catalog service.
func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.PackRepo == nil {
		return nil, fmt.Errorf("pack repository required")
	}
	if params.SampleRepo == nil {
		return nil, fmt.Errorf("sample repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	uploadExpiry := params.UploadURLExpiry
	if uploadExpiry <= 0 {
		uploadExpiry = 10 * time.Minute
	}
	return &service{
		tx:           params.TxRunner,
		packs:        params.PackRepo,
		samples:      params.SampleRepo,
		outbox:       params.Outbox,
		uploads:      params.Uploads,
		uploadExpiry: uploadExpiry,
		logg:         params.Logger,
	}, nil
}

func (s *service) CreatePack(ctx context.Context, actor Actor, req CreatePackRequest) (*PackDetail, error) {
	slug, err := s.uniqueSlug(ctx, req.Title)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "derive slug")
	}

	pack := &models.SamplePack{
		ID:          uuid.New(),
		CreatorID:   actor.UserID,
		Title:       strings.TrimSpace(req.Title),
		Slug:        slug,
		Description: req.Description,
		CoverKey:    req.CoverKey,
		PriceCents:  req.PriceCents,
		Status:      enums.PackStatusDraft,
	}
	if err := s.packs.Create(ctx, pack); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create pack")
	}

	detail := packDetailFromModel(*pack)
	return &detail, nil
}

func (s *service) UpdatePack(ctx context.Context, actor Actor, packID uuid.UUID, req UpdatePackRequest) (*PackDetail, error) {
	pack, err := s.loadOwnedPack(ctx, actor, packID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Title != nil {
		fields["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.PriceCents != nil {
		fields["price_cents"] = *req.PriceCents
	}
	if req.CoverKey != nil {
		fields["cover_key"] = *req.CoverKey
	}
	if len(fields) == 0 {
		detail := packDetailFromModel(*pack)
		return &detail, nil
	}

	if err := s.packs.UpdateFields(ctx, pack.ID, fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update pack")
	}
	return s.reloadDetail(ctx, pack.ID)
}

func (s *service) PublishPack(ctx context.Context, actor Actor, packID uuid.UUID) (*PackDetail, error) {
	pack, err := s.loadOwnedPack(ctx, actor, packID)
	if err != nil {
		return nil, err
	}
	if pack.Status == enums.PackStatusPublished {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "pack is already published")
	}
	if len(pack.Samples) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "pack has no samples to publish")
	}

	now := time.Now().UTC()
	if err := s.packs.SetStatus(ctx, pack.ID, enums.PackStatusPublished, &now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "publish pack")
	}
	return s.reloadDetail(ctx, pack.ID)
}

func (s *service) ArchivePack(ctx context.Context, actor Actor, packID uuid.UUID) (*PackDetail, error) {
	pack, err := s.loadOwnedPack(ctx, actor, packID)
	if err != nil {
		return nil, err
	}
	if pack.Status != enums.PackStatusPublished {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only published packs can be archived")
	}

	if err := s.packs.SetStatus(ctx, pack.ID, enums.PackStatusArchived, nil); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "archive pack")
	}
	return s.reloadDetail(ctx, pack.ID)
}

// DeletePack removes a pack and everything hanging off it in one transaction:
// cart items and order items referencing the pack or its samples go first,
// then the samples, then the pack row. A pack.deleted event is queued in the
// same transaction.
func (s *service) DeletePack(ctx context.Context, actor Actor, packID uuid.UUID) error {
	pack, err := s.loadOwnedPack(ctx, actor, packID)
	if err != nil {
		return err
	}

	sampleIDs := make([]uuid.UUID, 0, len(pack.Samples))
	for _, sample := range pack.Samples {
		sampleIDs = append(sampleIDs, sample.ID)
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartCond := tx.Where("pack_id = ?", pack.ID)
		orderCond := tx.Where("pack_id = ?", pack.ID)
		if len(sampleIDs) > 0 {
			cartCond = cartCond.Or("sample_id IN ?", sampleIDs)
			orderCond = orderCond.Or("sample_id IN ?", sampleIDs)
		}
		if err := tx.Where(cartCond).Delete(&models.CartItem{}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart items")
		}
		if err := tx.Where(orderCond).Delete(&models.OrderItem{}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete order items")
		}
		if err := NewSampleRepository(tx).DeleteByPack(ctx, pack.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete samples")
		}
		if err := NewPackRepository(tx).Delete(ctx, pack.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete pack")
		}

		event := outbox.DomainEvent{
			EventType:     enums.OutboxEventPackDeleted,
			AggregateType: enums.OutboxAggregatePack,
			AggregateID:   pack.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
			Data: payloads.PackDeletedEvent{
				PackID:    pack.ID,
				CreatorID: pack.CreatorID,
				Title:     pack.Title,
				SampleIDs: sampleIDs,
				DeletedAt: time.Now().UTC(),
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit pack.deleted")
		}
		return nil
	})
}

func (s *service) ListCreatorPacks(ctx context.Context, actor Actor) ([]PackSummary, error) {
	packs, err := s.packs.ListByCreator(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list creator packs")
	}
	summaries := make([]PackSummary, 0, len(packs))
	for _, pack := range packs {
		summaries = append(summaries, packSummaryFromModel(pack))
	}
	return summaries, nil
}

func (s *service) Earnings(ctx context.Context, actor Actor) (*EarningsSummary, error) {
	totalCents, itemsSold, err := s.packs.CreatorEarnings(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum earnings")
	}
	summary := newEarningsSummary(totalCents, itemsSold)
	return &summary, nil
}

func (s *service) AddSample(ctx context.Context, actor Actor, packID *uuid.UUID, req CreateSampleRequest) (*SampleSummary, error) {
	if !req.HasWAV && !req.HasStems && !req.HasMIDI {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sample must declare at least one format")
	}
	if packID != nil {
		if _, err := s.loadOwnedPack(ctx, actor, *packID); err != nil {
			return nil, err
		}
	}

	sample := &models.Sample{
		ID:              uuid.New(),
		PackID:          packID,
		CreatorID:       actor.UserID,
		Title:           strings.TrimSpace(req.Title),
		DurationSeconds: req.DurationSeconds,
		BPM:             req.BPM,
		MusicalKey:      req.MusicalKey,
		Tags:            pq.StringArray(req.Tags),
		HasWAV:          req.HasWAV,
		HasStems:        req.HasStems,
		HasMIDI:         req.HasMIDI,
		PriceWAVCents:   req.PriceWAVCents,
		PriceStemsCents: req.PriceStemsCents,
		PriceMIDICents:  req.PriceMIDICents,
	}
	if err := s.samples.Create(ctx, sample); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create sample")
	}

	summary := sampleFromModel(*sample)
	return &summary, nil
}

func (s *service) UpdateSample(ctx context.Context, actor Actor, sampleID uuid.UUID, req UpdateSampleRequest) (*SampleSummary, error) {
	sample, err := s.loadOwnedSample(ctx, actor, sampleID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Title != nil {
		fields["title"] = strings.TrimSpace(*req.Title)
	}
	if req.BPM != nil {
		fields["bpm"] = *req.BPM
	}
	if req.MusicalKey != nil {
		fields["musical_key"] = *req.MusicalKey
	}
	if req.Tags != nil {
		fields["tags"] = pq.StringArray(req.Tags)
	}
	if req.HasWAV != nil {
		fields["has_wav"] = *req.HasWAV
	}
	if req.HasStems != nil {
		fields["has_stems"] = *req.HasStems
	}
	if req.HasMIDI != nil {
		fields["has_midi"] = *req.HasMIDI
	}
	if req.PriceWAVCents != nil {
		fields["price_wav_cents"] = *req.PriceWAVCents
	}
	if req.PriceStemsCents != nil {
		fields["price_stems_cents"] = *req.PriceStemsCents
	}
	if req.PriceMIDICents != nil {
		fields["price_midi_cents"] = *req.PriceMIDICents
	}
	if len(fields) == 0 {
		summary := sampleFromModel(*sample)
		return &summary, nil
	}

	if err := s.samples.UpdateFields(ctx, sample.ID, fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update sample")
	}
	updated, err := s.samples.FindByID(ctx, sample.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload sample")
	}
	summary := sampleFromModel(*updated)
	return &summary, nil
}

func (s *service) DeleteSample(ctx context.Context, actor Actor, sampleID uuid.UUID) error {
	sample, err := s.loadOwnedSample(ctx, actor, sampleID)
	if err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Delete(&models.CartItem{}, "sample_id = ?", sample.ID).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart items")
		}
		if err := tx.Delete(&models.OrderItem{}, "sample_id = ?", sample.ID).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete order items")
		}
		if err := NewSampleRepository(tx).Delete(ctx, sample.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete sample")
		}
		return nil
	})
}

// PresignUpload signs a PUT URL for one sample asset. The object key is
// derived from the sample and asset kind, so delivery finds the bytes later
// without any extra bookkeeping.
func (s *service) PresignUpload(ctx context.Context, actor Actor, sampleID uuid.UUID, req UploadRequest) (*UploadTarget, error) {
	if s.uploads == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "upload signing unavailable")
	}
	sample, err := s.loadOwnedSample(ctx, actor, sampleID)
	if err != nil {
		return nil, err
	}

	selection, err := uploadSelection(sample, req.Kind)
	if err != nil {
		return nil, err
	}

	url, err := s.uploads.SignedURL("", selection.Key, selection.ContentType, s.uploadExpiry)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "catalog.upload.sign_failed", err)
		}
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "could not sign upload url")
	}

	return &UploadTarget{
		Key:         selection.Key,
		URL:         url,
		ContentType: selection.ContentType,
		ExpiresAt:   time.Now().Add(s.uploadExpiry),
	}, nil
}

func uploadSelection(sample *models.Sample, kind string) (delivery.Selection, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "preview":
		return delivery.PreviewSelection(sample.ID), nil
	case "", "wav":
		if !sample.HasWAV {
			return delivery.Selection{}, pkgerrors.New(pkgerrors.CodeStateConflict, "sample does not declare a wav rendition")
		}
		format := enums.SampleFormatWAV
		return delivery.FormatSelection(sample.ID, &format), nil
	case "stems":
		if !sample.HasStems {
			return delivery.Selection{}, pkgerrors.New(pkgerrors.CodeStateConflict, "sample does not declare stems")
		}
		format := enums.SampleFormatStems
		return delivery.FormatSelection(sample.ID, &format), nil
	case "midi":
		if !sample.HasMIDI {
			return delivery.Selection{}, pkgerrors.New(pkgerrors.CodeStateConflict, "sample does not declare midi")
		}
		format := enums.SampleFormatMIDI
		return delivery.FormatSelection(sample.ID, &format), nil
	default:
		return delivery.Selection{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown asset kind %q", kind))
	}
}

func (s *service) ListPublishedPacks(ctx context.Context, params pagination.Params) (*PackPage, error) {
	packs, nextCursor, err := s.packs.ListPublished(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list packs")
	}
	page := &PackPage{
		Items:      make([]PackSummary, 0, len(packs)),
		NextCursor: nextCursor,
	}
	for _, pack := range packs {
		page.Items = append(page.Items, packSummaryFromModel(pack))
	}
	return page, nil
}

// GetPublicPack returns the pack detail. Unpublished packs are visible only
// to their creator and admins.
func (s *service) GetPublicPack(ctx context.Context, actor *Actor, packID uuid.UUID) (*PackDetail, error) {
	pack, err := s.packs.FindByID(ctx, packID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pack not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pack")
	}
	if pack.Status != enums.PackStatusPublished {
		if actor == nil || (pack.CreatorID != actor.UserID && !actor.isAdmin()) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pack not found")
		}
	}
	detail := packDetailFromModel(*pack)
	return &detail, nil
}

func (s *service) GetPublicSample(ctx context.Context, sampleID uuid.UUID) (*SampleSummary, error) {
	sample, err := s.samples.FindByID(ctx, sampleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sample not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sample")
	}
	summary := sampleFromModel(*sample)
	return &summary, nil
}

func (s *service) loadOwnedPack(ctx context.Context, actor Actor, packID uuid.UUID) (*models.SamplePack, error) {
	pack, err := s.packs.FindByID(ctx, packID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pack not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pack")
	}
	if pack.CreatorID != actor.UserID && !actor.isAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "pack belongs to another creator")
	}
	return pack, nil
}

func (s *service) loadOwnedSample(ctx context.Context, actor Actor, sampleID uuid.UUID) (*models.Sample, error) {
	sample, err := s.samples.FindByID(ctx, sampleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sample not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sample")
	}
	if sample.CreatorID != actor.UserID && !actor.isAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "sample belongs to another creator")
	}
	return sample, nil
}

func (s *service) reloadDetail(ctx context.Context, packID uuid.UUID) (*PackDetail, error) {
	pack, err := s.packs.FindByID(ctx, packID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload pack")
	}
	detail := packDetailFromModel(*pack)
	return &detail, nil
}

var slugStripPattern = regexp.MustCompile(`[^a-z0-9]+`)

func (s *service) uniqueSlug(ctx context.Context, title string) (string, error) {
	base := slugStripPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(title)), "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "pack"
	}

	slug := base
	for attempt := 0; attempt < 5; attempt++ {
		exists, err := s.packs.SlugExists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
	}
	return "", fmt.Errorf("could not derive a unique slug for %q", title)
}
