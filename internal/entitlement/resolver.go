package entitlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wavecrate/wavecrate-backend/pkg/db/models"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
	pkgerrors "github.com/wavecrate/wavecrate-backend/pkg/errors"
)

type sampleFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Sample, error)
}

type packFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.SamplePack, error)
}

type purchaseChecker interface {
	HasEntitlement(ctx context.Context, userID, sampleID uuid.UUID, packID *uuid.UUID) (bool, error)
}

// Resolution carries the loaded sample alongside the ownership verdict so
// callers do not have to fetch it twice.
type Resolution struct {
	Sample   *models.Sample
	Entitled bool
}

// Resolver answers whether a user may access a sample's full-quality media.
// Every check re-queries current purchase state; there is no caching, so a
// refund or new purchase is visible on the next request.
type Resolver interface {
	Resolve(ctx context.Context, userID, sampleID uuid.UUID, format *enums.SampleFormat) (*Resolution, error)
	OwnsSample(ctx context.Context, userID, sampleID uuid.UUID) (bool, error)
	OwnsPack(ctx context.Context, userID, packID uuid.UUID) (bool, error)
}

type ResolverParams struct {
	Samples   sampleFinder
	Packs     packFinder
	Purchases purchaseChecker
}

type resolver struct {
	samples   sampleFinder
	packs     packFinder
	purchases purchaseChecker
}

func NewResolver(params ResolverParams) (Resolver, error) {
	if params.Samples == nil || params.Packs == nil || params.Purchases == nil {
		return nil, errors.New("entitlement: missing resolver dependencies")
	}
	return &resolver{samples: params.Samples, packs: params.Packs, purchases: params.Purchases}, nil
}

// Resolve loads the sample and decides entitlement. A requested format the
// sample does not carry fails before any ownership lookup, so the error is
// the same whether or not the user bought the sample. The sample's creator
// and the parent pack's creator are always entitled; admin-uploaded samples
// can carry a creator id that differs from the pack's, so both are checked.
// Everyone else needs a paid or completed order holding the sample or its
// parent pack.
func (r *resolver) Resolve(ctx context.Context, userID, sampleID uuid.UUID, format *enums.SampleFormat) (*Resolution, error) {
	sample, err := r.samples.FindByID(ctx, sampleID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sample not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sample")
	}

	if format != nil && !sample.HasFormat(*format) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "requested format is not available for this sample")
	}

	if sample.CreatorID == userID {
		return &Resolution{Sample: sample, Entitled: true}, nil
	}

	if sample.PackID != nil {
		pack, err := r.packs.FindByID(ctx, *sample.PackID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pack")
		}
		if pack != nil && pack.CreatorID == userID {
			return &Resolution{Sample: sample, Entitled: true}, nil
		}
	}

	owned, err := r.purchases.HasEntitlement(ctx, userID, sample.ID, sample.PackID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check purchases")
	}
	return &Resolution{Sample: sample, Entitled: owned}, nil
}

// OwnsSample reports whether the user may access the sample in any format.
func (r *resolver) OwnsSample(ctx context.Context, userID, sampleID uuid.UUID) (bool, error) {
	res, err := r.Resolve(ctx, userID, sampleID, nil)
	if err != nil {
		return false, err
	}
	return res.Entitled, nil
}

// OwnsPack reports whether the user holds a paid or completed order
// containing the pack. Creator ownership is a catalog concern and is
// not consulted here.
func (r *resolver) OwnsPack(ctx context.Context, userID, packID uuid.UUID) (bool, error) {
	owned, err := r.purchases.HasEntitlement(ctx, userID, uuid.Nil, &packID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check purchases")
	}
	return owned, nil
}
