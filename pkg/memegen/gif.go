package memegen

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"log/slog"
	"net/http"

	"github.com/ViBiOh/httputils/v4/pkg/concurrent"
	"github.com/ViBiOh/httputils/v4/pkg/httperror"
	"github.com/ViBiOh/httputils/v4/pkg/request"
	"github.com/ViBiOh/httputils/v4/pkg/telemetry"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/editor"
)

// GifHandler serves captioned animated gifs. Should be used with net/http
func (s Service) GifHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		ctx := r.Context()

		req := parseRequest(r.URL.Query())
		if err := req.check(); err != nil {
			httperror.BadRequest(ctx, w, fmt.Errorf("%w for url `%s`", err, r.URL.String()))
			return
		}

		if s.serveCached(ctx, w, req.Key(), true) {
			return
		}

		output, err := s.GenerateGif(ctx, req)
		if err != nil {
			handleGenerateError(ctx, w, err)
			return
		}

		w.Header().Add("Cache-Control", cacheControlDuration)
		w.Header().Set("Content-Type", "image/gif")
		w.WriteHeader(http.StatusOK)

		if err = gif.EncodeAll(w, output); err != nil {
			slog.Error("encode gif", "err", err)
			return
		}

		s.increaseServed(ctx)

		go s.storeGifInCache(req.Key(), output)
	})
}

// GenerateGif resolves the request's source gif and composes the captions on
// every frame.
func (s Service) GenerateGif(ctx context.Context, req Request) (output *gif.GIF, err error) {
	ctx, end := telemetry.StartSpan(ctx, s.tracer, "GenerateGif")
	defer end(&err)

	if err = req.check(); err != nil {
		return nil, err
	}

	sourceURL, err := s.resolveSource(ctx, req)
	if err != nil {
		return nil, err
	}

	captions, err := s.captionsFor(ctx, sourceURL, req)
	if err != nil {
		return nil, err
	}

	source, err := getGif(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("get gif: %w", err)
	}

	return s.captionGif(ctx, source, captions)
}

func getGif(ctx context.Context, imageURL string) (*gif.GIF, error) {
	resp, err := request.Get(imageURL).Send(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch URL `%s`: %w", imageURL, err)
	}

	output, err := gif.DecodeAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode gif: %w", err)
	}

	return output, nil
}

func (s Service) captionGif(ctx context.Context, source *gif.GIF, captions []editor.Caption) (output *gif.GIF, err error) {
	_, end := telemetry.StartSpan(ctx, s.tracer, "captionGif")
	defer end(&err)

	wg := concurrent.NewFailFast(8)

	for _, frame := range source.Image {
		func(frame *image.Paletted) {
			wg.Go(func() error {
				img := s.editor.Compose(frame, captions)
				bounds := frame.Bounds()
				draw.Draw(frame, bounds, img, bounds.Min, draw.Src)
				return nil
			})
		}(frame)
	}

	if err := wg.Wait(); err != nil {
		return source, err
	}

	return source, nil
}
