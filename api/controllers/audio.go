package controllers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wavecrate/wavecrate-backend/api/responses"
	"github.com/wavecrate/wavecrate-backend/api/validators"
	"github.com/wavecrate/wavecrate-backend/internal/delivery"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
	pkgerrors "github.com/wavecrate/wavecrate-backend/pkg/errors"
	"github.com/wavecrate/wavecrate-backend/pkg/logger"
)

// StreamAudio proxies sample media to an authenticated user. With
// ?preview=true the low-quality clip is served without an ownership check;
// otherwise the caller must be entitled to the sample, optionally in a
// specific ?format. The Range header is forwarded to storage so seeking
// works, and ?download=true turns the response into an attachment.
func StreamAudio(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}

		userID, sampleID, format, err := deliveryInputs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var result *delivery.StreamResult
		if previewRequested(r) {
			result, err = svc.StreamPreview(r.Context(), userID, sampleID, r.Header.Get("Range"))
		} else {
			result, err = svc.Stream(r.Context(), userID, sampleID, format, r.Header.Get("Range"))
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		asAttachment := strings.EqualFold(r.URL.Query().Get("download"), "true")
		writeStream(w, result, asAttachment)
	}
}

// SampleDownloadURL returns a short-lived signed URL that forces an
// attachment download of the chosen format.
func SampleDownloadURL(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}

		userID, sampleID, format, err := deliveryInputs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		link, err := svc.DownloadURL(r.Context(), userID, sampleID, format)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, link)
	}
}

// SampleStreamURL returns a longer-lived signed URL suited to in-app
// playback. ?preview=true signs the preview clip instead of a purchased
// rendition.
func SampleStreamURL(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}

		userID, sampleID, format, err := deliveryInputs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var link *delivery.LinkResponse
		if previewRequested(r) {
			link, err = svc.PreviewURL(r.Context(), userID, sampleID)
		} else {
			link, err = svc.StreamURL(r.Context(), userID, sampleID, format)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, link)
	}
}

func previewRequested(r *http.Request) bool {
	return strings.EqualFold(r.URL.Query().Get("preview"), "true")
}

func deliveryInputs(r *http.Request) (uuid.UUID, uuid.UUID, *enums.SampleFormat, error) {
	userID, err := requireUserID(r.Context())
	if err != nil {
		return uuid.Nil, uuid.Nil, nil, err
	}

	sampleID, err := validators.ParsePathUUID(chi.URLParam(r, "sampleID"), "sampleID")
	if err != nil {
		return uuid.Nil, uuid.Nil, nil, err
	}

	format, err := parseFormatQuery(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, nil, err
	}

	return userID, sampleID, format, nil
}

func parseFormatQuery(r *http.Request) (*enums.SampleFormat, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("format"))
	if raw == "" {
		return nil, nil
	}

	format := enums.SampleFormat(strings.ToLower(raw))
	if !format.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown format %q", raw))
	}

	return &format, nil
}

// writeStream copies storage headers through to the client and mirrors
// the upstream status so partial responses stay partial.
func writeStream(w http.ResponseWriter, result *delivery.StreamResult, asAttachment bool) {
	obj := result.Object
	defer obj.Body.Close()

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Accept-Ranges", "bytes")
	if obj.ContentLength != "" {
		w.Header().Set("Content-Length", obj.ContentLength)
	}
	if obj.ContentRange != "" {
		w.Header().Set("Content-Range", obj.ContentRange)
	}
	if asAttachment {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	}

	status := obj.StatusCode
	if status != http.StatusPartialContent {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	// Best effort copy. The status line is already gone, so a broken
	// client connection here only gets logged by the server.
	_, _ = io.Copy(w, obj.Body)
}
