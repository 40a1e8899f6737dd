package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"github.com/davidbyttow/govips/v2/vips"

	"github.com/dr-electrique/rapport-server/storage"
)

// ThumbRepository records the generated thumbnail key.
type ThumbRepository interface {
	SetThumbPath(ctx context.Context, photoID uint, thumbPath string) error
}

// ThumbnailTask 缩略图生成任务
// Generates the dashboard preview for one persisted photo: loads the
// stored JPEG, scales it to TargetWidth, and saves it as WebP under
// thumbs/.
type ThumbnailTask struct {
	PhotoID     uint
	SourcePath  string
	TargetWidth int
	Repo        ThumbRepository
	Storage     storage.Provider
}

// ThumbKey maps an object key to its thumbnail key.
func ThumbKey(sourcePath string) string {
	base := strings.TrimSuffix(path.Base(sourcePath), path.Ext(sourcePath))
	dir := path.Dir(sourcePath)
	return path.Join("thumbs", dir, base+".webp")
}

// Execute 执行任务
func (t *ThumbnailTask) Execute() {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[ThumbnailTask] panic recovered for photo %d: %v", t.PhotoID, rec)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	reader, err := t.Storage.Get(ctx, t.SourcePath)
	if err != nil {
		log.Printf("[ThumbnailTask] failed to get source %s: %v", t.SourcePath, err)
		return
	}
	defer reader.Close()

	thumbData, err := t.generate(reader)
	if err != nil {
		log.Printf("[ThumbnailTask] failed to generate thumbnail for %s: %v", t.SourcePath, err)
		return
	}

	target := ThumbKey(t.SourcePath)
	if err := t.Storage.Save(ctx, target, bytes.NewReader(thumbData), int64(len(thumbData)), "image/webp"); err != nil {
		log.Printf("[ThumbnailTask] failed to store thumbnail %s: %v", target, err)
		return
	}

	if err := t.Repo.SetThumbPath(ctx, t.PhotoID, target); err != nil {
		log.Printf("[ThumbnailTask] failed to record thumbnail for photo %d: %v", t.PhotoID, err)
		return
	}

	log.Printf("[ThumbnailTask] generated %s (%d bytes)", target, len(thumbData))
}

// generate scales the source down to TargetWidth and exports WebP.
func (t *ThumbnailTask) generate(reader io.Reader) ([]byte, error) {
	const maxImageSize = 50 * 1024 * 1024
	limitedReader := io.LimitReader(reader, maxImageSize)

	img, err := vips.NewImageFromReader(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	defer img.Close()

	width := img.Width()
	height := img.Height()

	if width > t.TargetWidth {
		targetHeight := height * t.TargetWidth / width
		if err := img.Thumbnail(t.TargetWidth, targetHeight, vips.InterestingCentre); err != nil {
			return nil, fmt.Errorf("failed to thumbnail image: %w", err)
		}
	}

	webpBytes, _, err := img.ExportWebp(&vips.WebpExportParams{
		Quality:  85,
		Lossless: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export webp: %w", err)
	}

	return webpBytes, nil
}
