package memegen

import (
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ViBiOh/httputils/v4/pkg/httperror"
	"github.com/ViBiOh/httputils/v4/pkg/httpjson"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/editor"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/imgflip"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/reddit"
)

func parseRequest(query url.Values) Request {
	ai, _ := strconv.ParseBool(query.Get("ai"))

	return Request{
		From:      strings.TrimSpace(query.Get("from")),
		Template:  strings.TrimSpace(query.Get("template")),
		Subreddit: strings.TrimSpace(query.Get("subreddit")),
		Category:  strings.TrimSpace(query.Get("category")),
		Search:    strings.TrimSpace(query.Get("search")),
		Top:       editor.StripEmoji(query.Get("top")),
		Bottom:    editor.StripEmoji(query.Get("bottom")),
		Hint:      strings.TrimSpace(query.Get("hint")),
		AI:        ai,
	}
}

// Handler serves generated memes. Should be used with net/http
func (s Service) Handler() http.Handler {
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

		if s.serveCached(ctx, w, req.Key(), false) {
			return
		}

		output, _, err := s.Generate(ctx, req)
		if err != nil {
			handleGenerateError(ctx, w, err)
			return
		}

		w.Header().Add("Cache-Control", cacheControlDuration)
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusOK)

		if err = jpeg.Encode(w, output, &jpeg.Options{Quality: 95}); err != nil {
			slog.Error("encode meme", "err", err)
			return
		}

		s.increaseServed(ctx)

		go s.storeInCache(req.Key(), output)
	})
}

// SearchHandler lists image posts matching a keyword.
func (s Service) SearchHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		ctx := r.Context()

		keyword := strings.TrimSpace(r.URL.Query().Get("q"))
		if len(keyword) == 0 {
			httperror.BadRequest(ctx, w, errors.New("q param is required"))
			return
		}

		posts, err := s.reddit.Search(ctx, keyword, defaultLimit)
		if err != nil {
			handleGenerateError(ctx, w, err)
			return
		}

		httpjson.Write(ctx, w, http.StatusOK, posts)
	})
}

// SubredditsHandler discovers communities matching a keyword.
func (s Service) SubredditsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		ctx := r.Context()

		keyword := strings.TrimSpace(r.URL.Query().Get("q"))
		if len(keyword) == 0 {
			httperror.BadRequest(ctx, w, errors.New("q param is required"))
			return
		}

		subreddits, err := s.reddit.SearchSubreddits(ctx, keyword, defaultLimit)
		if err != nil {
			handleGenerateError(ctx, w, err)
			return
		}

		httpjson.Write(ctx, w, http.StatusOK, subreddits)
	})
}

// TemplatesHandler lists captionable ImgFlip templates.
func (s Service) TemplatesHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		ctx := r.Context()

		templates, err := s.imgflip.Templates(ctx)
		if err != nil {
			httperror.InternalServerError(ctx, w, err)
			return
		}

		httpjson.Write(ctx, w, http.StatusOK, templates)
	})
}

// CaptionHandler lets ImgFlip render the captions and redirects to the
// hosted result.
func (s Service) CaptionHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		ctx := r.Context()
		query := r.URL.Query()

		template := strings.TrimSpace(query.Get("template"))
		if len(template) == 0 {
			httperror.BadRequest(ctx, w, errors.New("template param is required"))
			return
		}

		texts := []string{editor.StripEmoji(query.Get("top")), editor.StripEmoji(query.Get("bottom"))}
		for _, extra := range query["text"] {
			texts = append(texts, editor.StripEmoji(extra))
		}

		hosted, err := s.imgflip.Caption(ctx, template, texts)
		if err != nil {
			httperror.InternalServerError(ctx, w, err)
			return
		}

		http.Redirect(w, r, hosted, http.StatusFound)
	})
}

func handleGenerateError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoSource), errors.Is(err, ErrNoCaption), errors.Is(err, editor.ErrVideoContent), errors.Is(err, editor.ErrUnsupportedFormat):
		httperror.BadRequest(ctx, w, err)

	case errors.Is(err, editor.ErrNotFound), errors.Is(err, imgflip.ErrNotFound):
		httperror.NotFound(ctx, w)

	case errors.Is(err, reddit.ErrRateLimitExceeded):
		http.Error(w, err.Error(), http.StatusTooManyRequests)

	default:
		httperror.InternalServerError(ctx, w, err)
	}
}
