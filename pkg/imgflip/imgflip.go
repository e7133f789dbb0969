package imgflip

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ViBiOh/flags"
	"github.com/ViBiOh/httputils/v4/pkg/cache"
	"github.com/ViBiOh/httputils/v4/pkg/httpjson"
	"github.com/ViBiOh/httputils/v4/pkg/redis"
	"github.com/ViBiOh/httputils/v4/pkg/request"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/version"
	"go.opentelemetry.io/otel/trace"
)

const apiRoot = "https://api.imgflip.com"

var (
	// ErrNotFound occurs when no template matches.
	ErrNotFound = errors.New("no template found")

	cacheDuration = time.Hour * 24
)

// Template is a captionable meme template from ImgFlip.
type Template struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Width    int64  `json:"width"`
	Height   int64  `json:"height"`
	BoxCount int64  `json:"box_count"`
}

type memesResponse struct {
	Data struct {
		Memes []Template `json:"memes"`
	} `json:"data"`
	ErrorMessage string `json:"error_message"`
	Success      bool   `json:"success"`
}

type captionResponse struct {
	Data struct {
		URL     string `json:"url"`
		PageURL string `json:"page_url"`
	} `json:"data"`
	ErrorMessage string `json:"error_message"`
	Success      bool   `json:"success"`
}

// Service of package
type Service struct {
	templates *cache.Cache[string, []Template]
	apiRoot   string
	username  string
	password  string
}

// Config of package
type Config struct {
	Username string
	Password string
}

// Flags adds flags for configuring package
func Flags(fs *flag.FlagSet, prefix string, overrides ...flags.Override) *Config {
	var config Config

	flags.New("Username", "ImgFlip account username").Prefix(prefix).DocPrefix("imgflip").StringVar(fs, &config.Username, "", overrides)
	flags.New("Password", "ImgFlip account password").Prefix(prefix).DocPrefix("imgflip").StringVar(fs, &config.Password, "", overrides)

	return &config
}

// New creates new Service from Config
func New(config *Config, redisClient redis.Client, tracerProvider trace.TracerProvider) *Service {
	service := &Service{
		apiRoot:  apiRoot,
		username: strings.TrimSpace(config.Username),
		password: strings.TrimSpace(config.Password),
	}

	service.templates = cache.New(redisClient, func(id string) string {
		return version.Redis("imgflip:" + id)
	}, service.fetchTemplates, tracerProvider).WithTTL(cacheDuration)

	return service
}

// Enabled checks that credentials are configured.
func (s *Service) Enabled() bool {
	return len(s.username) != 0 && len(s.password) != 0
}

// Templates lists popular captionable templates.
func (s *Service) Templates(ctx context.Context) ([]Template, error) {
	return s.templates.Get(ctx, "templates")
}

func (s *Service) fetchTemplates(ctx context.Context, _ string) ([]Template, error) {
	resp, err := request.Get(s.apiRoot+"/get_memes").Send(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	content, err := httpjson.Read[memesResponse](resp)
	if err != nil {
		return nil, fmt.Errorf("parse templates response: %w", err)
	}

	if !content.Success {
		return nil, fmt.Errorf("imgflip error: %s", content.ErrorMessage)
	}

	return content.Data.Memes, nil
}

// Template finds one template by its ID.
func (s *Service) Template(ctx context.Context, id string) (Template, error) {
	templates, err := s.Templates(ctx)
	if err != nil {
		return Template{}, err
	}

	for _, template := range templates {
		if template.ID == id {
			return template, nil
		}
	}

	return Template{}, ErrNotFound
}

// Caption renders the given texts onto a template and returns the hosted
// image URL. Texts beyond the second are sent as extra boxes.
func (s *Service) Caption(ctx context.Context, templateID string, texts []string) (string, error) {
	values := url.Values{}
	values.Set("template_id", templateID)
	values.Set("username", s.username)
	values.Set("password", s.password)

	if len(texts) > 2 {
		for index, text := range texts {
			values.Set(fmt.Sprintf("boxes[%d][text]", index), text)
		}
	} else {
		for index, text := range texts {
			values.Set(fmt.Sprintf("text%d", index), text)
		}
	}

	resp, err := request.Post(s.apiRoot+"/caption_image").Form(ctx, values)
	if err != nil {
		return "", fmt.Errorf("caption template `%s`: %w", templateID, err)
	}

	content, err := httpjson.Read[captionResponse](resp)
	if err != nil {
		return "", fmt.Errorf("parse caption response: %w", err)
	}

	if !content.Success {
		return "", fmt.Errorf("imgflip error: %s", content.ErrorMessage)
	}

	return content.Data.URL, nil
}
