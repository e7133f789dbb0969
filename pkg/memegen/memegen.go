package memegen

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/ViBiOh/flags"
	"github.com/ViBiOh/httputils/v4/pkg/model"
	"github.com/ViBiOh/httputils/v4/pkg/telemetry"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/editor"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/imgflip"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/openai"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/reddit"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultCategory = "hot"
	defaultLimit    = 25
)

// ErrNoSource occurs when a request names no image source at all.
var ErrNoSource = errors.New("no image source")

// ErrNoCaption occurs when a request has neither captions nor AI enabled.
var ErrNoCaption = errors.New("no caption")

// Request describes one meme to generate. Exactly one of From, Template,
// Subreddit or Search provides the source image.
type Request struct {
	From      string
	Template  string
	Subreddit string
	Category  string
	Search    string
	Top       string
	Bottom    string
	Hint      string
	AI        bool
}

// Key is the stable identity of the request, used for the file cache.
func (r Request) Key() string {
	return strings.Join([]string{r.From, r.Template, r.Subreddit, r.Category, r.Search, r.Top, r.Bottom, r.Hint, fmt.Sprintf("%t", r.AI)}, ":")
}

func (r Request) check() error {
	if len(r.From) == 0 && len(r.Template) == 0 && len(r.Subreddit) == 0 && len(r.Search) == 0 {
		return ErrNoSource
	}

	if !r.AI && len(r.Top) == 0 && len(r.Bottom) == 0 {
		return ErrNoCaption
	}

	return nil
}

// Service of package
type Service struct {
	editor       editor.Service
	reddit       *reddit.Service
	openai       openai.Service
	imgflip      *imgflip.Service
	tracer       trace.Tracer
	servedMetric metric.Int64Counter
	cachedMetric metric.Int64Counter
	tmpFolder    string
}

// Config of package
type Config struct {
	TmpFolder string
}

// Flags adds flags for configuring package
func Flags(fs *flag.FlagSet, prefix string, overrides ...flags.Override) *Config {
	var config Config

	flags.New("TmpFolder", "Folder for generated files cache").Prefix(prefix).DocPrefix("memegen").StringVar(fs, &config.TmpFolder, "/tmp", overrides)

	return &config
}

// New creates new Service from Config
func New(config *Config, editorService editor.Service, redditService *reddit.Service, openaiService openai.Service, imgflipService *imgflip.Service, meterProvider metric.MeterProvider, tracerProvider trace.TracerProvider) Service {
	service := Service{
		editor:    editorService,
		reddit:    redditService,
		openai:    openaiService,
		imgflip:   imgflipService,
		tmpFolder: strings.TrimSpace(config.TmpFolder),
	}

	if !model.IsNil(tracerProvider) {
		service.tracer = tracerProvider.Tracer("memegen")
	}

	if !model.IsNil(meterProvider) {
		meter := meterProvider.Meter("github.com/jackmcgaughey/reddit-meme-generator/pkg/memegen")

		var err error

		service.servedMetric, err = meter.Int64Counter("memegen.served")
		if err != nil {
			slog.Error("create served counter", "err", err)
		}

		service.cachedMetric, err = meter.Int64Counter("memegen.cached")
		if err != nil {
			slog.Error("create cached counter", "err", err)
		}
	}

	return service
}

// Generate resolves the request's source image, determines its captions and
// composes them. It returns the composed image and the source URL used.
func (s Service) Generate(ctx context.Context, req Request) (output image.Image, sourceURL string, err error) {
	ctx, end := telemetry.StartSpan(ctx, s.tracer, "Generate")
	defer end(&err)

	if err = req.check(); err != nil {
		return nil, "", err
	}

	sourceURL, err = s.resolveSource(ctx, req)
	if err != nil {
		return nil, "", err
	}

	captions, err := s.captionsFor(ctx, sourceURL, req)
	if err != nil {
		return nil, "", err
	}

	output, err = s.FromURL(ctx, sourceURL, captions)
	if err != nil {
		return nil, "", err
	}

	return output, sourceURL, nil
}

// FromURL fetches the image behind imageURL and composes the captions on it.
func (s Service) FromURL(ctx context.Context, imageURL string, captions []editor.Caption) (output image.Image, err error) {
	ctx, end := telemetry.StartSpan(ctx, s.tracer, "FromURL")
	defer end(&err)

	source, err := editor.FromURL(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}

	return s.editor.Compose(source, captions), nil
}

// AICaptions asks the caption provider for a top and bottom text matching
// the image behind imageURL.
func (s Service) AICaptions(ctx context.Context, imageURL, hint string) (captions []editor.Caption, err error) {
	ctx, end := telemetry.StartSpan(ctx, s.tracer, "AICaptions")
	defer end(&err)

	content, err := s.reddit.Download(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}

	generated, err := s.openai.GenerateCaptions(ctx, content, hint)
	if err != nil {
		return nil, fmt.Errorf("generate captions: %w", err)
	}

	return []editor.Caption{
		{Text: generated.Top, Region: editor.Top},
		{Text: generated.Bottom, Region: editor.Bottom},
	}, nil
}

func (s Service) resolveSource(ctx context.Context, req Request) (string, error) {
	switch {
	case len(req.From) != 0:
		return req.From, nil

	case len(req.Template) != 0:
		template, err := s.imgflip.Template(ctx, req.Template)
		if err != nil {
			return "", fmt.Errorf("get template: %w", err)
		}

		return template.URL, nil

	case len(req.Subreddit) != 0:
		category := req.Category
		if len(category) == 0 {
			category = defaultCategory
		}

		posts, err := s.reddit.Posts(ctx, req.Subreddit, category, defaultLimit)
		if err != nil {
			return "", fmt.Errorf("list posts: %w", err)
		}

		return pickPost(posts, fmt.Sprintf("no image post in r/%s %s", req.Subreddit, category))

	default:
		posts, err := s.reddit.Search(ctx, req.Search, defaultLimit)
		if err != nil {
			return "", fmt.Errorf("search posts: %w", err)
		}

		return pickPost(posts, fmt.Sprintf("no image post for `%s`", req.Search))
	}
}

func (s Service) captionsFor(ctx context.Context, sourceURL string, req Request) ([]editor.Caption, error) {
	if req.AI {
		return s.AICaptions(ctx, sourceURL, req.Hint)
	}

	return []editor.Caption{
		{Text: req.Top, Region: editor.Top},
		{Text: req.Bottom, Region: editor.Bottom},
	}, nil
}

func pickPost(posts []reddit.Post, emptyMessage string) (string, error) {
	if len(posts) == 0 {
		return "", errors.New(emptyMessage)
	}

	return posts[rand.Intn(len(posts))].URL, nil
}
