package editor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/ViBiOh/httputils/v4/pkg/request"
	"github.com/go-oss/image/imageutil"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const maxBodySize int64 = 10 << 20

var (
	// ErrVideoContent occurs when the source turns out to be a video.
	ErrVideoContent = errors.New("video content is not supported")
	// ErrNotFound occurs when the source cannot be located.
	ErrNotFound = errors.New("image not found")
	// ErrUnsupportedFormat occurs when bytes cannot be decoded as an image.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}

var (
	videoExtensions = []string{".mp4", ".webm", ".mov", ".avi", ".mkv", ".gifv"}
	videoPatterns   = []string{"v.redd.it", "youtube.com/watch", "youtu.be", "vimeo.com"}
)

// IsImageURL tells whether the URL looks like a still image by extension.
func IsImageURL(imageURL string) bool {
	lowercased := strings.ToLower(imageURL)

	for _, ext := range imageExtensions {
		if strings.HasSuffix(lowercased, ext) {
			return true
		}
	}

	return false
}

// IsVideoURL tells whether the URL points at video content, by extension or
// by known video host.
func IsVideoURL(imageURL string) bool {
	lowercased := strings.ToLower(imageURL)

	for _, ext := range videoExtensions {
		if strings.HasSuffix(lowercased, ext) {
			return true
		}
	}

	for _, pattern := range videoPatterns {
		if strings.Contains(lowercased, pattern) {
			return true
		}
	}

	return false
}

// FromURL fetches and decodes a bitmap, normalized for composition. Video
// content is rejected before any decode attempt.
func FromURL(ctx context.Context, imageURL string) (image.Image, error) {
	if IsVideoURL(imageURL) {
		return nil, fmt.Errorf("fetch `%s`: %w", imageURL, ErrVideoContent)
	}

	resp, err := request.Get(imageURL).Send(ctx, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("fetch `%s`: %w", imageURL, ErrNotFound)
		}

		return nil, fmt.Errorf("fetch `%s`: %w", imageURL, err)
	}

	if contentType := resp.Header.Get("Content-Type"); strings.HasPrefix(contentType, "video/") {
		if discardErr := request.DiscardBody(resp.Body); discardErr != nil {
			return nil, fmt.Errorf("discard video body: %w", discardErr)
		}

		return nil, fmt.Errorf("fetch `%s`: %w", imageURL, ErrVideoContent)
	}

	return decode(io.LimitReader(resp.Body, maxBodySize))
}

// FromFile decodes a bitmap from the local filesystem.
func FromFile(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open `%s`: %w", path, ErrNotFound)
		}

		return nil, fmt.Errorf("open `%s`: %w", path, err)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("close input file", "path", path, "err", closeErr)
		}
	}()

	return decode(file)
}

func decode(input io.Reader) (image.Image, error) {
	buffered := bufio.NewReader(input)

	var reader io.Reader = buffered

	// EXIF, and its orientation surprises, only concern JPEG. Anything else
	// goes straight to the registered decoders.
	if magic, err := buffered.Peek(2); err == nil && magic[0] == 0xff && magic[1] == 0xd8 {
		exifFree, err := imageutil.RemoveExif(buffered)
		if err != nil {
			return nil, fmt.Errorf("remove exif: %w", err)
		}

		reader = exifFree
	}

	output, _, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, err)
	}

	return flatten(output), nil
}

// flatten drops any alpha channel by compositing onto a white backing layer,
// so composition always works on an opaque bitmap.
func flatten(source image.Image) *image.RGBA {
	bounds := source.Bounds()

	output := image.NewRGBA(bounds)
	draw.Draw(output, bounds, image.White, image.Point{}, draw.Src)
	draw.Draw(output, bounds, source, bounds.Min, draw.Over)

	return output
}
