package orders

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wavecrate/wavecrate-backend/pkg/db/models"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
	pkgerrors "github.com/wavecrate/wavecrate-backend/pkg/errors"
	"github.com/wavecrate/wavecrate-backend/pkg/logger"
	"github.com/wavecrate/wavecrate-backend/pkg/pagination"
)

type orderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	EntitledItems(ctx context.Context, userID uuid.UUID) ([]models.OrderItem, error)
	FindSamplesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Sample, error)
	FindPacksByIDs(ctx context.Context, ids []uuid.UUID) ([]models.SamplePack, error)
}

// Service reads the user's purchase history and assembles their library.
type Service interface {
	Library(ctx context.Context, userID uuid.UUID) (*LibraryView, error)
	History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderPage, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderView, error)
}

type ServiceParams struct {
	Repo   orderRepository
	Logger *logger.Logger
}

type service struct {
	repo orderRepository
	logg *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("orders: missing repository")
	}
	return &service{repo: params.Repo, logg: params.Logger}, nil
}

// Library expands the user's paid order items into concrete holdings. A
// direct sample purchase unlocks the purchased format; a pack purchase
// unlocks every format of every sample in the pack.
func (s *service) Library(ctx context.Context, userID uuid.UUID) (*LibraryView, error) {
	items, err := s.repo.EntitledItems(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchases")
	}

	sampleFormats := make(map[uuid.UUID]map[enums.SampleFormat]bool)
	packIDs := make([]uuid.UUID, 0)
	seenPacks := make(map[uuid.UUID]bool)
	directSampleIDs := make([]uuid.UUID, 0)

	for _, item := range items {
		switch {
		case item.SampleID != nil:
			if sampleFormats[*item.SampleID] == nil {
				sampleFormats[*item.SampleID] = make(map[enums.SampleFormat]bool)
				directSampleIDs = append(directSampleIDs, *item.SampleID)
			}
			if item.Format != nil {
				sampleFormats[*item.SampleID][*item.Format] = true
			}
		case item.PackID != nil:
			if !seenPacks[*item.PackID] {
				seenPacks[*item.PackID] = true
				packIDs = append(packIDs, *item.PackID)
			}
		}
	}

	packs, err := s.repo.FindPacksByIDs(ctx, packIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchased packs")
	}

	samplesByID := make(map[uuid.UUID]models.Sample)
	for _, pack := range packs {
		for _, sample := range pack.Samples {
			samplesByID[sample.ID] = sample
			// Pack ownership unlocks everything the sample ships with.
			if sampleFormats[sample.ID] == nil {
				sampleFormats[sample.ID] = make(map[enums.SampleFormat]bool)
			}
			for _, format := range availableFormats(sample) {
				sampleFormats[sample.ID][format] = true
			}
		}
	}

	missing := make([]uuid.UUID, 0, len(directSampleIDs))
	for _, id := range directSampleIDs {
		if _, ok := samplesByID[id]; !ok {
			missing = append(missing, id)
		}
	}
	directSamples, err := s.repo.FindSamplesByIDs(ctx, missing)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchased samples")
	}
	for _, sample := range directSamples {
		samplesByID[sample.ID] = sample
	}

	view := &LibraryView{
		Samples: make([]LibrarySample, 0, len(samplesByID)),
		Packs:   make([]LibraryPack, 0, len(packs)),
	}
	for id, sample := range samplesByID {
		formats := make([]enums.SampleFormat, 0, len(sampleFormats[id]))
		for _, format := range []enums.SampleFormat{enums.SampleFormatWAV, enums.SampleFormatStems, enums.SampleFormatMIDI} {
			if sampleFormats[id][format] {
				formats = append(formats, format)
			}
		}
		view.Samples = append(view.Samples, LibrarySample{
			ID:              sample.ID,
			PackID:          sample.PackID,
			Title:           sample.Title,
			DurationSeconds: sample.DurationSeconds,
			BPM:             sample.BPM,
			MusicalKey:      sample.MusicalKey,
			Formats:         formats,
		})
	}
	sort.Slice(view.Samples, func(i, j int) bool {
		return view.Samples[i].Title < view.Samples[j].Title
	})

	for _, pack := range packs {
		view.Packs = append(view.Packs, LibraryPack{
			ID:          pack.ID,
			Title:       pack.Title,
			Slug:        pack.Slug,
			CoverKey:    pack.CoverKey,
			SampleCount: len(pack.Samples),
		})
	}
	sort.Slice(view.Packs, func(i, j int) bool {
		return view.Packs[i].Title < view.Packs[j].Title
	})
	return view, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderPage, error) {
	records, nextCursor, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	page := &OrderPage{Items: make([]OrderView, 0, len(records)), NextCursor: nextCursor}
	for _, record := range records {
		page.Items = append(page.Items, orderViewFromModel(record))
	}
	return page, nil
}

// GetOrder returns one order. Orders belonging to other users read as absent.
func (s *service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderView, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	view := orderViewFromModel(*order)
	return &view, nil
}
