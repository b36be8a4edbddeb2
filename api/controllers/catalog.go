package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wavecrate/wavecrate-backend/api/middleware"
	"github.com/wavecrate/wavecrate-backend/api/responses"
	"github.com/wavecrate/wavecrate-backend/api/validators"
	"github.com/wavecrate/wavecrate-backend/internal/catalog"
	pkgerrors "github.com/wavecrate/wavecrate-backend/pkg/errors"
	"github.com/wavecrate/wavecrate-backend/pkg/logger"
	"github.com/wavecrate/wavecrate-backend/pkg/pagination"
)

// BrowsePacks lists published packs for the storefront, newest first.
func BrowsePacks(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := pagination.Params{
			Limit:  limit,
			Cursor: validators.ParseQueryString(r, "cursor", "", 256),
		}

		page, err := svc.ListPublishedPacks(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// GetPack returns a single pack. Drafts and archived packs are only
// visible to their creator or an admin.
func GetPack(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		packID, err := validators.ParsePathUUID(chi.URLParam(r, "packID"), "packID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var actor *catalog.Actor
		if middleware.UserIDFromContext(r.Context()) != "" {
			a, err := catalogActor(r.Context())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			actor = &a
		}

		detail, err := svc.GetPublicPack(r.Context(), actor, packID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, detail)
	}
}

// GetSample returns public metadata for a single published sample.
func GetSample(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		sampleID, err := validators.ParsePathUUID(chi.URLParam(r, "sampleID"), "sampleID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.GetPublicSample(r.Context(), sampleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, summary)
	}
}
