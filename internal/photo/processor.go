package photo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"log"
	"math"
	"time"

	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode 图片解码失败 corrupt or unsupported input
	ErrDecode = errors.New("image decode failed")
	// ErrEncode JPEG 编码失败
	ErrEncode = errors.New("image encode failed")
)

// ProcessorConfig 图片处理配置 immutable after construction.
type ProcessorConfig struct {
	MaxWidth     int
	MaxHeight    int
	Quality      int // starting JPEG quality (0-100)
	QualityFloor int // below this no second encode is attempted
	QualityStep  int // subtracted for the single re-encode
	MaxFileSize  int // bytes; bounded-effort target, not a guarantee
	Watermark    bool
	BarHeight    int // watermark bar height in pixels
}

// DefaultProcessorConfig mirrors the form's reference settings:
// 1600x1200 max, quality 75, one re-encode at 55 past 500KB, 28px bar.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		MaxWidth:     1600,
		MaxHeight:    1200,
		Quality:      75,
		QualityFloor: 50,
		QualityStep:  20,
		MaxFileSize:  500000,
		Watermark:    true,
		BarHeight:    28,
	}
}

// File 原始上传文件
type File struct {
	Name string
	Size int64
	Data []byte
}

// ProcessResult 处理结果
// Data holds the remote URL when the eager upload succeeded, otherwise the
// local data-URL preview. Callers must not assume it is a network URL.
type ProcessResult struct {
	Data        string   `json:"data"`
	Preview     string   `json:"preview"`
	StoragePath string   `json:"storage_path,omitempty"`
	StorageURL  string   `json:"storage_url,omitempty"`
	Metadata    Metadata `json:"metadata"`
}

// Processor 图片处理器
// Converts an arbitrary user-selected image into a bounded-size watermarked
// JPEG for upload and preview. Stateless apart from its configuration; safe
// for concurrent use.
type Processor struct {
	cfg    ProcessorConfig
	store  ObjectStore // optional, nil skips the eager upload
	delays RetrySchedule
	sleep  sleepFunc
	now    func() time.Time
}

// NewProcessor creates a processor. store may be nil; then Process never
// touches the network and only returns the local preview.
func NewProcessor(cfg ProcessorConfig, store ObjectStore) *Processor {
	return &Processor{
		cfg:    cfg,
		store:  store,
		delays: DefaultRetrySchedule(),
		sleep:  sleepContext,
		now:    time.Now,
	}
}

// Process decodes, bounds, flattens, watermarks and re-encodes one image,
// then best-effort uploads it when a store and parentHint are available.
// Upload failure is swallowed: a photo must never block report submission
// just because the immediate cloud upload failed, the transaction manager
// retries it at submission time.
func (p *Processor) Process(ctx context.Context, file File, geo *GeoLocation, category, parentHint string) (*ProcessResult, error) {
	src, _, err := image.Decode(bytes.NewReader(file.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	canvas := p.render(src)
	if p.cfg.Watermark {
		drawWatermark(canvas, p.watermarkText(geo), p.cfg.BarHeight)
	}

	data, _, err := p.encodeBounded(canvas)
	if err != nil {
		return nil, err
	}

	originalSize := file.Size
	if originalSize <= 0 {
		originalSize = int64(len(file.Data))
	}

	bounds := canvas.Bounds()
	result := &ProcessResult{
		Preview: EncodeDataURL("image/jpeg", data),
		Metadata: Metadata{
			OriginalSize:     originalSize,
			CompressedSize:   int64(len(data)),
			CompressionRatio: compressionRatio(originalSize, len(data)),
			Width:            bounds.Dx(),
			Height:           bounds.Dy(),
		},
	}
	result.Data = result.Preview

	log.Printf("[PhotoProcessor] compressed %s: %dKB -> %dKB (-%s%%)",
		SanitizeFilename(file.Name), originalSize/1024, len(data)/1024, result.Metadata.CompressionRatio)

	if p.store != nil && parentHint != "" {
		name := file.Name
		if name == "" {
			name = "photo"
		}
		key := ObjectKey(parentHint, category, name, p.now())
		if err := uploadWithBackoff(ctx, p.store, key, data, "image/jpeg", p.delays, p.sleep); err != nil {
			log.Printf("[PhotoProcessor] eager upload of %s failed, keeping local preview: %v", key, err)
		} else {
			result.StoragePath = key
			result.StorageURL = p.store.PublicURL(key)
			result.Data = result.StorageURL
		}
	}

	return result, nil
}

// render flattens src onto an opaque white canvas bounded to the configured
// maximum dimensions, preserving aspect ratio. Never upscales.
func (p *Processor) render(src image.Image) *image.RGBA {
	b := src.Bounds()
	w, h := targetSize(b.Dx(), b.Dy(), p.cfg.MaxWidth, p.cfg.MaxHeight)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	}
	return dst
}

// encodeBounded encodes at the starting quality and, when the result is
// over MaxFileSize and quality sits above the floor, re-encodes exactly
// once at quality-QualityStep. That second result is final even if it is
// still over the threshold. Returns the number of encode passes.
func (p *Processor) encodeBounded(img image.Image) ([]byte, int, error) {
	data, err := encodeJPEG(img, p.cfg.Quality)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	if len(data) <= p.cfg.MaxFileSize || p.cfg.Quality <= p.cfg.QualityFloor {
		return data, 1, nil
	}

	smaller, err := encodeJPEG(img, p.cfg.Quality-p.cfg.QualityStep)
	if err != nil {
		return data, 1, nil
	}
	return smaller, 2, nil
}

func (p *Processor) watermarkText(geo *GeoLocation) string {
	text := "DR Électrique | " + p.now().Format("2006-01-02 15:04")
	if geo != nil && geo.Captured {
		text += fmt.Sprintf(" | %.4f, %.4f", geo.Latitude, geo.Longitude)
	}
	return text
}

// drawWatermark composites a semi-opaque dark bar across the bottom rows
// and draws the text white, left-aligned.
func drawWatermark(img *image.RGBA, text string, barHeight int) {
	b := img.Bounds()
	if barHeight <= 0 || barHeight > b.Dy() {
		return
	}

	bar := image.Rect(b.Min.X, b.Max.Y-barHeight, b.Max.X, b.Max.Y)
	draw.Draw(img, bar, image.NewUniform(color.RGBA{A: 166}), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(b.Min.X+8, b.Max.Y-barHeight/2+4),
	}
	d.DrawString(text)
}

func targetSize(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	ratio := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	return int(math.Round(float64(w) * ratio)), int(math.Round(float64(h) * ratio))
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// compressionRatio is the signed percentage reduction, one decimal place.
func compressionRatio(original int64, compressed int) string {
	if original <= 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", (1-float64(compressed)/float64(original))*100)
}
