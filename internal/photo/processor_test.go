package photo

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noiseImage(w, h int) *image.RGBA {
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = byte(rng.Intn(256))
	}
	return img
}

func pngFile(t *testing.T, name string, img image.Image) File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return File{Name: name, Size: int64(buf.Len()), Data: buf.Bytes()}
}

func newTestProcessor(cfg ProcessorConfig, store ObjectStore) *Processor {
	p := NewProcessor(cfg, store)
	p.now = func() time.Time { return time.Date(2026, 8, 28, 14, 30, 0, 0, time.UTC) }
	p.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return p
}

func decodeResultJPEG(t *testing.T, result *ProcessResult) image.Image {
	t.Helper()
	data, mimeType, err := DecodeDataURL(result.Preview)
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", mimeType)
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestProcess_BoundsDimensions(t *testing.T) {
	p := newTestProcessor(DefaultProcessorConfig(), nil)

	result, err := p.Process(context.Background(), pngFile(t, "big.png", noiseImage(3200, 2400)), nil, CategoryGenerales, "")
	require.NoError(t, err)

	assert.Equal(t, 1600, result.Metadata.Width)
	assert.Equal(t, 1200, result.Metadata.Height)

	out := decodeResultJPEG(t, result)
	assert.Equal(t, 1600, out.Bounds().Dx())
	assert.Equal(t, 1200, out.Bounds().Dy())
}

func TestProcess_NeverUpscales(t *testing.T) {
	p := newTestProcessor(DefaultProcessorConfig(), nil)

	result, err := p.Process(context.Background(), pngFile(t, "small.png", noiseImage(800, 600)), nil, CategoryGenerales, "")
	require.NoError(t, err)

	assert.Equal(t, 800, result.Metadata.Width)
	assert.Equal(t, 600, result.Metadata.Height)
}

func TestTargetSize_AspectRatio(t *testing.T) {
	w, h := targetSize(4000, 1000, 1600, 1200)
	assert.Equal(t, 1600, w)
	assert.Equal(t, 400, h)

	w, h = targetSize(1000, 4000, 1600, 1200)
	assert.Equal(t, 300, w)
	assert.Equal(t, 1200, h)
}

func TestEncodeBounded_SingleReencode(t *testing.T) {
	img := noiseImage(200, 200)

	cfg := DefaultProcessorConfig()
	cfg.MaxFileSize = 1000 // noise at q75 is far above this
	p := newTestProcessor(cfg, nil)

	data, passes, err := p.encodeBounded(img)
	require.NoError(t, err)
	assert.Equal(t, 2, passes, "one re-encode and no more, even while still over the threshold")
	assert.Greater(t, len(data), cfg.MaxFileSize)
}

func TestEncodeBounded_NoReencodeUnderThreshold(t *testing.T) {
	cfg := DefaultProcessorConfig()
	p := newTestProcessor(cfg, nil)

	_, passes, err := p.encodeBounded(noiseImage(50, 50))
	require.NoError(t, err)
	assert.Equal(t, 1, passes)
}

func TestEncodeBounded_QualityFloorBlocksReencode(t *testing.T) {
	cfg := DefaultProcessorConfig()
	cfg.Quality = 50 // already at the floor
	cfg.MaxFileSize = 10
	p := newTestProcessor(cfg, nil)

	_, passes, err := p.encodeBounded(noiseImage(100, 100))
	require.NoError(t, err)
	assert.Equal(t, 1, passes)
}

func TestDrawWatermark_ChangesOnlyBottomRows(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 400, 120))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	before := append([]byte{}, img.Pix...)

	drawWatermark(img, "DR Électrique | 2026-08-28 14:30", 28)

	barStart := img.PixOffset(0, 120-28)
	assert.Equal(t, before[:barStart], img.Pix[:barStart], "rows above the bar untouched")
	assert.NotEqual(t, before[barStart:], img.Pix[barStart:], "bar rows must differ")

	// bar pixels away from the text are darkened
	c := img.RGBAAt(390, 110)
	assert.Less(t, int(c.R), 0xff)
}

func TestWatermarkText_Geolocation(t *testing.T) {
	p := newTestProcessor(DefaultProcessorConfig(), nil)

	withGeo := p.watermarkText(&GeoLocation{Latitude: 45.50171, Longitude: -73.56729, Captured: true})
	assert.Contains(t, withGeo, "DR Électrique | 2026-08-28 14:30")
	assert.Contains(t, withGeo, "45.5017, -73.5673")

	noFix := p.watermarkText(&GeoLocation{Latitude: 45.5, Longitude: -73.5, Captured: false})
	assert.NotContains(t, noFix, "45.5")
	assert.Equal(t, noFix, p.watermarkText(nil))
}

func TestProcess_DecodeError(t *testing.T) {
	p := newTestProcessor(DefaultProcessorConfig(), nil)

	_, err := p.Process(context.Background(), File{Name: "junk.bin", Data: []byte("not an image")}, nil, CategoryGenerales, "")
	require.ErrorIs(t, err, ErrDecode)
}

func TestProcess_EagerUploadSuccess(t *testing.T) {
	store := &fakeStore{}
	p := newTestProcessor(DefaultProcessorConfig(), store)

	result, err := p.Process(context.Background(), pngFile(t, "chantier 12.png", noiseImage(64, 64)),
		nil, CategoryAvant, "proj-7")
	require.NoError(t, err)

	require.Len(t, store.uploads, 1)
	assert.Contains(t, result.StoragePath, "proj-7/avant/")
	assert.Contains(t, result.StoragePath, "chantier_12")
	assert.Equal(t, "https://cdn.test/"+result.StoragePath, result.StorageURL)
	assert.Equal(t, result.StorageURL, result.Data)
	assert.NotEqual(t, result.Data, result.Preview)
}

func TestProcess_EagerUploadFailureIsNonFatal(t *testing.T) {
	store := &fakeStore{failAll: true}
	p := newTestProcessor(DefaultProcessorConfig(), store)

	result, err := p.Process(context.Background(), pngFile(t, "a.png", noiseImage(64, 64)),
		nil, CategoryGenerales, "proj-7")
	require.NoError(t, err, "upload failure must not surface to the caller")

	assert.Empty(t, result.StorageURL)
	assert.Empty(t, result.StoragePath)
	assert.Equal(t, result.Preview, result.Data)
	assert.Len(t, store.uploads, 3)
}

func TestProcess_SkipsUploadWithoutParentHint(t *testing.T) {
	store := &fakeStore{}
	p := newTestProcessor(DefaultProcessorConfig(), store)

	_, err := p.Process(context.Background(), pngFile(t, "a.png", noiseImage(32, 32)), nil, CategoryGenerales, "")
	require.NoError(t, err)
	assert.Empty(t, store.uploads)
}

func TestCompressionRatio(t *testing.T) {
	assert.Equal(t, "75.0", compressionRatio(1000, 250))
	assert.Equal(t, "-150.0", compressionRatio(100, 250))
	assert.Equal(t, "0.0", compressionRatio(0, 250))
}
