package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"

	"github.com/expatdesk/docvault/internal/core/domain"
	"github.com/expatdesk/docvault/internal/core/ports"
)

const maxEdge = 320

// Generator renders small JPEG previews for raster uploads. Formats without a
// decoder (PDF, HEIC) yield no thumbnail, which is not an error.
type Generator struct {
	storage ports.ObjectStorage
	logger  *slog.Logger
}

func NewGenerator(storage ports.ObjectStorage, logger *slog.Logger) *Generator {
	return &Generator{storage: storage, logger: logger}
}

func (g *Generator) Generate(ctx context.Context, doc *domain.Document) (string, error) {
	if !supportedMime(doc.MimeType) {
		return "", nil
	}

	rc, err := g.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open stored document: %w", err)
	}
	defer rc.Close()

	src, _, err := image.Decode(rc)
	if err != nil {
		g.logger.Debug("image decode failed, skipping thumbnail",
			"document_id", doc.ID, "error", err)
		return "", nil
	}

	thumb := downscale(src, maxEdge)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}

	key := thumbnailKey(doc)
	if err := g.storage.Save(ctx, key, &buf, int64(buf.Len()), "image/jpeg"); err != nil {
		return "", fmt.Errorf("store thumbnail: %w", err)
	}
	return key, nil
}

func supportedMime(mime string) bool {
	switch mime {
	case "image/jpeg", "image/png":
		return true
	}
	return false
}

func thumbnailKey(doc *domain.Document) string {
	base := doc.StoragePath
	if i := strings.LastIndex(base, "."); i > strings.LastIndex(base, "/") {
		base = base[:i]
	}
	return base + "_thumb.jpg"
}

// downscale does nearest-neighbor resampling so the longest edge fits limit.
// Preview quality is enough; no interpolation dependency needed.
func downscale(src image.Image, limit int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= limit && h <= limit {
		return src
	}

	scale := float64(limit) / float64(w)
	if h > w {
		scale = float64(limit) / float64(h)
	}
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < dh; y++ {
		sy := bounds.Min.Y + y*h/dh
		for x := 0; x < dw; x++ {
			sx := bounds.Min.X + x*w/dw
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}
