package controllers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wavecrate/wavecrate-backend/api/middleware"
	"github.com/wavecrate/wavecrate-backend/internal/delivery"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
	pkgerrors "github.com/wavecrate/wavecrate-backend/pkg/errors"
	"github.com/wavecrate/wavecrate-backend/pkg/logger"
	"github.com/wavecrate/wavecrate-backend/pkg/storage/gcs"
)

type stubDeliveryService struct {
	streamResult   *delivery.StreamResult
	streamErr      error
	lastRange      string
	lastFormat     *enums.SampleFormat
	link           *delivery.LinkResponse
	previewStreams int
	previewLinks   int
}

func (s *stubDeliveryService) StreamPreview(ctx context.Context, userID, sampleID uuid.UUID, rangeHeader string) (*delivery.StreamResult, error) {
	s.previewStreams++
	s.lastRange = rangeHeader
	return s.streamResult, s.streamErr
}

func (s *stubDeliveryService) Stream(ctx context.Context, userID, sampleID uuid.UUID, format *enums.SampleFormat, rangeHeader string) (*delivery.StreamResult, error) {
	s.lastRange = rangeHeader
	s.lastFormat = format
	return s.streamResult, s.streamErr
}

func (s *stubDeliveryService) DownloadURL(ctx context.Context, userID, sampleID uuid.UUID, format *enums.SampleFormat) (*delivery.LinkResponse, error) {
	s.lastFormat = format
	return s.link, s.streamErr
}

func (s *stubDeliveryService) StreamURL(ctx context.Context, userID, sampleID uuid.UUID, format *enums.SampleFormat) (*delivery.LinkResponse, error) {
	s.lastFormat = format
	return s.link, s.streamErr
}

func (s *stubDeliveryService) PreviewURL(ctx context.Context, userID, sampleID uuid.UUID) (*delivery.LinkResponse, error) {
	s.previewLinks++
	return s.link, s.streamErr
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func streamRequest(t *testing.T, target string, userID, sampleID uuid.UUID) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("sampleID", sampleID.String())
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	if userID != uuid.Nil {
		ctx = middleware.WithUserID(ctx, userID.String())
	}
	return req.WithContext(ctx)
}

func TestStreamAudioReflectsPartialContent(t *testing.T) {
	svc := &stubDeliveryService{
		streamResult: &delivery.StreamResult{
			Object: &gcs.Object{
				Body:          io.NopCloser(strings.NewReader("chunk")),
				StatusCode:    http.StatusPartialContent,
				ContentLength: "5",
				ContentRange:  "bytes 0-4/1024",
			},
			ContentType: "audio/wav",
			Filename:    "dusty-break.wav",
		},
	}

	req := streamRequest(t, "/api/v1/audio/x", uuid.New(), uuid.New())
	req.Header.Set("Range", "bytes=0-4")
	rec := httptest.NewRecorder()
	StreamAudio(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", rec.Code)
	}
	if svc.lastRange != "bytes=0-4" {
		t.Fatalf("range header not forwarded, got %q", svc.lastRange)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 0-4/1024" {
		t.Fatalf("content range not reflected, got %q", got)
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Fatalf("accept ranges missing, got %q", got)
	}
	if rec.Body.String() != "chunk" {
		t.Fatalf("body not proxied, got %q", rec.Body.String())
	}
	if rec.Header().Get("Content-Disposition") != "" {
		t.Fatalf("plain stream must not force an attachment")
	}
}

func TestStreamAudioDownloadFlagSetsDisposition(t *testing.T) {
	svc := &stubDeliveryService{
		streamResult: &delivery.StreamResult{
			Object: &gcs.Object{
				Body:        io.NopCloser(strings.NewReader("full")),
				StatusCode:  http.StatusOK,
				ContentType: "audio/wav",
			},
			ContentType: "audio/wav",
			Filename:    "dusty-break.wav",
		},
	}

	req := streamRequest(t, "/api/v1/audio/x?download=true&format=wav", uuid.New(), uuid.New())
	rec := httptest.NewRecorder()
	StreamAudio(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="dusty-break.wav"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if svc.lastFormat == nil || *svc.lastFormat != enums.SampleFormatWAV {
		t.Fatalf("format query not forwarded, got %v", svc.lastFormat)
	}
}

func TestStreamAudioRejectsUnknownFormat(t *testing.T) {
	svc := &stubDeliveryService{}

	req := streamRequest(t, "/api/v1/audio/x?format=flac", uuid.New(), uuid.New())
	rec := httptest.NewRecorder()
	StreamAudio(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", rec.Code)
	}
}

func TestStreamAudioRequiresAuth(t *testing.T) {
	svc := &stubDeliveryService{}

	req := streamRequest(t, "/api/v1/audio/x", uuid.Nil, uuid.New())
	rec := httptest.NewRecorder()
	StreamAudio(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user, got %d", rec.Code)
	}
}

func TestStreamAudioForbiddenWithoutPurchase(t *testing.T) {
	svc := &stubDeliveryService{
		streamErr: pkgerrors.New(pkgerrors.CodeForbidden, "purchase required"),
	}

	req := streamRequest(t, "/api/v1/audio/x", uuid.New(), uuid.New())
	rec := httptest.NewRecorder()
	StreamAudio(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestStreamAudioPreviewSkipsEntitlement(t *testing.T) {
	svc := &stubDeliveryService{
		streamResult: &delivery.StreamResult{
			Object: &gcs.Object{
				Body:       io.NopCloser(strings.NewReader("mp3")),
				StatusCode: http.StatusOK,
			},
			ContentType: "audio/mpeg",
			Filename:    "dusty-break.mp3",
		},
	}

	req := streamRequest(t, "/api/v1/audio/x?preview=true", uuid.New(), uuid.New())
	rec := httptest.NewRecorder()
	StreamAudio(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for preview, got %d", rec.Code)
	}
	if svc.previewStreams != 1 {
		t.Fatalf("preview path not taken, calls=%d", svc.previewStreams)
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Fatalf("unexpected content type %q", got)
	}
}

func TestStreamAudioPreviewStillRequiresAuth(t *testing.T) {
	svc := &stubDeliveryService{}

	req := streamRequest(t, "/api/v1/audio/x?preview=true", uuid.Nil, uuid.New())
	rec := httptest.NewRecorder()
	StreamAudio(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous preview, got %d", rec.Code)
	}
	if svc.previewStreams != 0 {
		t.Fatalf("service must not be reached without a user")
	}
}

func TestSampleStreamURLPreviewFlag(t *testing.T) {
	svc := &stubDeliveryService{link: &delivery.LinkResponse{URL: "https://signed.example/previews/x.mp3"}}

	req := streamRequest(t, "/api/v1/stream/sample/x?preview=true", uuid.New(), uuid.New())
	rec := httptest.NewRecorder()
	SampleStreamURL(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.previewLinks != 1 {
		t.Fatalf("preview link path not taken, calls=%d", svc.previewLinks)
	}
	if !strings.Contains(rec.Body.String(), "previews/x.mp3") {
		t.Fatalf("signed url missing from body: %s", rec.Body.String())
	}
}
