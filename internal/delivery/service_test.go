package delivery

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/wavecrate/wavecrate-backend/internal/entitlement"
	"github.com/wavecrate/wavecrate-backend/pkg/config"
	"github.com/wavecrate/wavecrate-backend/pkg/db/models"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
	pkgerrors "github.com/wavecrate/wavecrate-backend/pkg/errors"
	"github.com/wavecrate/wavecrate-backend/pkg/storage/gcs"
)

type stubResolver struct {
	resolution *entitlement.Resolution
	err        error
}

func (s *stubResolver) Resolve(context.Context, uuid.UUID, uuid.UUID, *enums.SampleFormat) (*entitlement.Resolution, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.resolution, nil
}

func (s *stubResolver) OwnsSample(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.resolution != nil && s.resolution.Entitled, nil
}

func (s *stubResolver) OwnsPack(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.resolution != nil && s.resolution.Entitled, nil
}

type stubSampleFinder struct {
	sample *models.Sample
}

func (s *stubSampleFinder) FindByID(context.Context, uuid.UUID) (*models.Sample, error) {
	if s.sample == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.sample, nil
}

type stubPackFinder struct {
	pack *models.SamplePack
}

func (s *stubPackFinder) FindByID(context.Context, uuid.UUID) (*models.SamplePack, error) {
	if s.pack == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.pack, nil
}

type stubObjectStore struct {
	object      *gcs.Object
	readErr     error
	signErr     error
	lastKey     string
	lastRange   string
	lastExpiry  time.Duration
	lastName    string
	signedCalls int
}

func (s *stubObjectStore) ReadObject(_ context.Context, _, object, rangeHeader string) (*gcs.Object, error) {
	s.lastKey = object
	s.lastRange = rangeHeader
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.object, nil
}

func (s *stubObjectStore) SignedReadURL(_, object string, expires time.Duration) (string, error) {
	s.signedCalls++
	s.lastKey = object
	s.lastExpiry = expires
	if s.signErr != nil {
		return "", s.signErr
	}
	return "https://storage.googleapis.com/signed/" + object, nil
}

func (s *stubObjectStore) SignedDownloadURL(_, object, filename string, expires time.Duration) (string, error) {
	s.signedCalls++
	s.lastKey = object
	s.lastName = filename
	s.lastExpiry = expires
	if s.signErr != nil {
		return "", s.signErr
	}
	return "https://storage.googleapis.com/signed/" + object, nil
}

func deliveryConfig() config.DeliveryConfig {
	return config.DeliveryConfig{
		DownloadURLExpiry: 2 * time.Minute,
		StreamURLExpiry:   time.Hour,
	}
}

func newDeliveryTestService(t *testing.T, resolver *stubResolver, samples *stubSampleFinder, store *stubObjectStore) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Resolver: resolver,
		Samples:  samples,
		Packs:    &stubPackFinder{},
		Storage:  store,
		Config:   deliveryConfig(),
	})
	require.NoError(t, err)
	return svc
}

func entitledSample(id uuid.UUID) *stubResolver {
	return &stubResolver{resolution: &entitlement.Resolution{
		Sample:   &models.Sample{ID: id, Title: "Dusty Break", HasWAV: true},
		Entitled: true,
	}}
}

func TestFormatSelectionKeys(t *testing.T) {
	id := uuid.MustParse("3f1d5c2e-7a4b-4d8e-9c6f-112233445566")
	wav := enums.SampleFormatWAV
	stems := enums.SampleFormatStems
	midi := enums.SampleFormatMIDI

	assert.Equal(t, "samples/"+id.String()+"/full.wav", FormatSelection(id, nil).Key)
	assert.Equal(t, "samples/"+id.String()+"/full.wav", FormatSelection(id, &wav).Key)
	assert.Equal(t, "samples/"+id.String()+"/stems.zip", FormatSelection(id, &stems).Key)
	assert.Equal(t, "samples/"+id.String()+"/midi.zip", FormatSelection(id, &midi).Key)
	assert.Equal(t, "previews/"+id.String()+".mp3", PreviewSelection(id).Key)
}

func TestSelectionFilename(t *testing.T) {
	stems := enums.SampleFormatStems
	selection := FormatSelection(uuid.New(), &stems)
	assert.Equal(t, "late-night-drums-stems.zip", selection.Filename("Late Night Drums!"))
	assert.Equal(t, "sample-stems.zip", selection.Filename("???"))
}

func TestStreamPreviewSkipsEntitlement(t *testing.T) {
	sampleID := uuid.New()
	store := &stubObjectStore{object: &gcs.Object{
		Body:          io.NopCloser(strings.NewReader("mp3 bytes")),
		StatusCode:    200,
		ContentLength: "9",
	}}
	// The resolver would deny; previews never consult it.
	svc := newDeliveryTestService(t, &stubResolver{err: errors.New("must not be called")},
		&stubSampleFinder{sample: &models.Sample{ID: sampleID, Title: "Dusty Break"}}, store)

	result, err := svc.StreamPreview(context.Background(), uuid.New(), sampleID, "")
	require.NoError(t, err)
	defer result.Object.Body.Close()
	assert.Equal(t, "previews/"+sampleID.String()+".mp3", store.lastKey)
	assert.Equal(t, "audio/mpeg", result.ContentType)
}

func TestStreamPreviewUnknownSample(t *testing.T) {
	svc := newDeliveryTestService(t, &stubResolver{}, &stubSampleFinder{}, &stubObjectStore{})

	_, err := svc.StreamPreview(context.Background(), uuid.New(), uuid.New(), "")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestStreamPreviewUnpublishedPackCreatorOnly(t *testing.T) {
	sampleID := uuid.New()
	packID := uuid.New()
	creatorID := uuid.New()
	store := &stubObjectStore{object: &gcs.Object{
		Body:       io.NopCloser(strings.NewReader("mp3 bytes")),
		StatusCode: 200,
	}}
	svc, err := NewService(ServiceParams{
		Resolver: &stubResolver{},
		Samples: &stubSampleFinder{sample: &models.Sample{
			ID: sampleID, PackID: &packID, CreatorID: creatorID, Title: "Dusty Break",
		}},
		Packs:   &stubPackFinder{pack: &models.SamplePack{ID: packID, Status: enums.PackStatusDraft}},
		Storage: store,
		Config:  deliveryConfig(),
	})
	require.NoError(t, err)

	_, err = svc.StreamPreview(context.Background(), uuid.New(), sampleID, "")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	// Strangers get the same answer an unknown sample would.
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())

	result, err := svc.StreamPreview(context.Background(), creatorID, sampleID, "")
	require.NoError(t, err)
	defer result.Object.Body.Close()
	assert.Equal(t, "previews/"+sampleID.String()+".mp3", store.lastKey)
}

func TestPreviewURLSignsPreviewKey(t *testing.T) {
	sampleID := uuid.New()
	store := &stubObjectStore{}
	svc := newDeliveryTestService(t, &stubResolver{},
		&stubSampleFinder{sample: &models.Sample{ID: sampleID, Title: "Dusty Break"}}, store)

	link, err := svc.PreviewURL(context.Background(), uuid.New(), sampleID)
	require.NoError(t, err)
	assert.Equal(t, "previews/"+sampleID.String()+".mp3", store.lastKey)
	assert.Equal(t, time.Hour, store.lastExpiry)
	assert.NotEmpty(t, link.URL)
}

func TestStreamForwardsRangeHeader(t *testing.T) {
	sampleID := uuid.New()
	store := &stubObjectStore{object: &gcs.Object{
		Body:         io.NopCloser(strings.NewReader("partial")),
		StatusCode:   206,
		ContentRange: "bytes 0-99/4096",
	}}
	svc := newDeliveryTestService(t, entitledSample(sampleID), &stubSampleFinder{}, store)

	result, err := svc.Stream(context.Background(), uuid.New(), sampleID, nil, "bytes=0-99")
	require.NoError(t, err)
	defer result.Object.Body.Close()
	assert.Equal(t, "bytes=0-99", store.lastRange)
	assert.Equal(t, 206, result.Object.StatusCode)
	assert.Equal(t, "bytes 0-99/4096", result.Object.ContentRange)
	assert.Equal(t, "audio/wav", result.ContentType)
}

func TestStreamRequiresEntitlement(t *testing.T) {
	sampleID := uuid.New()
	resolver := &stubResolver{resolution: &entitlement.Resolution{
		Sample:   &models.Sample{ID: sampleID, Title: "Dusty Break"},
		Entitled: false,
	}}
	svc := newDeliveryTestService(t, resolver, &stubSampleFinder{}, &stubObjectStore{})

	_, err := svc.Stream(context.Background(), uuid.New(), sampleID, nil, "")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestStreamMissingObjectIsNotFound(t *testing.T) {
	sampleID := uuid.New()
	store := &stubObjectStore{readErr: gcs.ErrObjectNotFound}
	svc := newDeliveryTestService(t, entitledSample(sampleID), &stubSampleFinder{}, store)

	_, err := svc.Stream(context.Background(), uuid.New(), sampleID, nil, "")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	// Missing media reads as 404, never as an authorization failure.
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestStreamReflectsUnsatisfiableRange(t *testing.T) {
	sampleID := uuid.New()
	store := &stubObjectStore{readErr: gcs.ErrRangeNotSatisfiable}
	svc := newDeliveryTestService(t, entitledSample(sampleID), &stubSampleFinder{}, store)

	_, err := svc.Stream(context.Background(), uuid.New(), sampleID, nil, "bytes=999999-")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeRangeInvalid, typed.Code())
}

func TestStreamStorageFailureStaysGeneric(t *testing.T) {
	sampleID := uuid.New()
	store := &stubObjectStore{readErr: errors.New("gcs read failed: 503: backend details with gs://bucket/key")}
	svc := newDeliveryTestService(t, entitledSample(sampleID), &stubSampleFinder{}, store)

	_, err := svc.Stream(context.Background(), uuid.New(), sampleID, nil, "")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInternal, typed.Code())
	assert.NotContains(t, typed.Error(), "gs://")
}

func TestDownloadURLUsesShortExpiry(t *testing.T) {
	sampleID := uuid.New()
	store := &stubObjectStore{}
	svc := newDeliveryTestService(t, entitledSample(sampleID), &stubSampleFinder{}, store)

	link, err := svc.DownloadURL(context.Background(), uuid.New(), sampleID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, store.lastExpiry)
	assert.Equal(t, "dusty-break.wav", store.lastName)
	assert.Contains(t, link.URL, "samples/"+sampleID.String()+"/full.wav")
	assert.WithinDuration(t, time.Now().Add(2*time.Minute), link.ExpiresAt, 5*time.Second)
}

func TestStreamURLUsesLongExpiry(t *testing.T) {
	sampleID := uuid.New()
	store := &stubObjectStore{}
	svc := newDeliveryTestService(t, entitledSample(sampleID), &stubSampleFinder{}, store)

	link, err := svc.StreamURL(context.Background(), uuid.New(), sampleID, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, store.lastExpiry)
	assert.NotEmpty(t, link.URL)
}
