package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wavecrate/wavecrate-backend/pkg/db/models"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
	pkgerrors "github.com/wavecrate/wavecrate-backend/pkg/errors"
	"github.com/wavecrate/wavecrate-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartRepository interface {
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error)
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (int64, error)
	ClearItems(ctx context.Context, cartID uuid.UUID) error
}

type sampleFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Sample, error)
}

type packFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.SamplePack, error)
}

// Service manages the user's single active cart.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*View, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type ServiceParams struct {
	TxRunner txRunner
	Repo     cartRepository
	Samples  sampleFinder
	Packs    packFinder
	Logger   *logger.Logger
}

type service struct {
	tx      txRunner
	repo    cartRepository
	samples sampleFinder
	packs   packFinder
	logg    *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil || params.Repo == nil || params.Samples == nil || params.Packs == nil {
		return nil, errors.New("cart: missing service dependencies")
	}
	return &service{
		tx:      params.TxRunner,
		repo:    params.Repo,
		samples: params.Samples,
		packs:   params.Packs,
		logg:    params.Logger,
	}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	record, err := s.repo.FindActiveByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return emptyView(), nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return viewFromModel(*record), nil
}

// AddItem puts a sample (in a specific format) or a whole pack into the active
// cart, creating the cart on first use. The item records the price at add
// time; later catalog edits do not change it.
func (s *service) AddItem(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*View, error) {
	if (req.SampleID == nil) == (req.PackID == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "exactly one of sample_id or pack_id is required")
	}
	if req.PackID != nil && req.Format != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "format does not apply to whole-pack items")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)

		record, err := repo.FindActiveByUser(ctx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			record, err = repo.Create(ctx, userID)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}

		item := models.CartItem{
			ID:     uuid.New(),
			CartID: record.ID,
		}
		if req.SampleID != nil {
			if err := s.fillSampleItem(ctx, &item, *req.SampleID, req.Format); err != nil {
				return err
			}
		} else {
			if err := s.fillPackItem(ctx, &item, *req.PackID); err != nil {
				return err
			}
		}

		exists, err := repo.HasItem(ctx, record.ID, item.SampleID, item.PackID, item.Format)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check cart item")
		}
		if exists {
			return pkgerrors.New(pkgerrors.CodeConflict, "item is already in the cart")
		}

		if err := repo.AddItem(ctx, &item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *service) fillSampleItem(ctx context.Context, item *models.CartItem, sampleID uuid.UUID, format *enums.SampleFormat) error {
	sample, err := s.samples.FindByID(ctx, sampleID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "sample not found")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sample")
	}

	chosen := enums.SampleFormatWAV
	if format != nil {
		chosen = *format
	}
	if !sample.HasFormat(chosen) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "requested format is not available for this sample")
	}

	item.SampleID = &sample.ID
	item.Format = &chosen
	item.Title = sample.Title
	item.UnitPriceCents = sample.PriceCentsFor(chosen)
	return nil
}

func (s *service) fillPackItem(ctx context.Context, item *models.CartItem, packID uuid.UUID) error {
	pack, err := s.packs.FindByID(ctx, packID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "pack not found")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pack")
	}
	if pack.Status != enums.PackStatusPublished {
		return pkgerrors.New(pkgerrors.CodeNotFound, "pack not found")
	}

	item.PackID = &pack.ID
	item.Title = pack.Title
	item.UnitPriceCents = pack.PriceCents
	return nil
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error) {
	record, err := s.repo.FindActiveByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}

	affected, err := s.repo.DeleteItem(ctx, record.ID, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return s.Get(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	record, err := s.repo.FindActiveByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if err := s.repo.ClearItems(ctx, record.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}
