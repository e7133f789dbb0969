package memegen

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ViBiOh/httputils/v4/pkg/hash"
)

var (
	bufferPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 32*1024))
		},
	}

	cacheDuration        = time.Hour * 24
	cacheControlDuration = fmt.Sprintf("public, max-age=%.0f", cacheDuration.Seconds())
)

func (s Service) serveCached(ctx context.Context, w http.ResponseWriter, key string, animated bool) bool {
	var filename string
	if animated {
		filename = s.gifCacheFilename(key)
	} else {
		filename = s.cacheFilename(key)
	}

	file, err := os.OpenFile(filename, os.O_RDONLY, 0o600)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("open file from local cache", "err", err)
		}

		return false
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Error("close file from local cache", "err", closeErr)
		}
	}()

	buffer := bufferPool.Get().(*bytes.Buffer)
	defer bufferPool.Put(buffer)

	w.Header().Add("Cache-Control", cacheControlDuration)
	if animated {
		w.Header().Set("Content-Type", "image/gif")
	} else {
		w.Header().Set("Content-Type", "image/jpeg")
	}
	w.WriteHeader(http.StatusOK)

	if _, err = io.CopyBuffer(w, file, buffer.Bytes()); err != nil {
		slog.Error("write file from local cache", "err", err)
		return false
	}

	s.increaseCached(ctx)

	return true
}

func (s Service) storeInCache(key string, image image.Image) {
	file, err := os.OpenFile(s.cacheFilename(key), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		slog.Error("open image to local cache", "err", err)
		return
	}

	if err := jpeg.Encode(file, image, &jpeg.Options{Quality: 95}); err != nil {
		slog.Error("write image to local cache", "err", err)
	}

	if err := file.Close(); err != nil {
		slog.Error("close image in local cache", "err", err)
	}
}

func (s Service) storeGifInCache(key string, image *gif.GIF) {
	file, err := os.OpenFile(s.gifCacheFilename(key), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		slog.Error("open gif to local cache", "err", err)
		return
	}

	if err := gif.EncodeAll(file, image); err != nil {
		slog.Error("write gif to local cache", "err", err)
	}

	if err := file.Close(); err != nil {
		slog.Error("close gif in local cache", "err", err)
	}
}

func (s Service) cacheFilename(key string) string {
	return filepath.Join(s.tmpFolder, hash.String(key)+".jpg")
}

func (s Service) gifCacheFilename(key string) string {
	return filepath.Join(s.tmpFolder, hash.String(key)+".gif")
}
