package reddit

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ViBiOh/flags"
	"github.com/ViBiOh/httputils/v4/pkg/cache"
	"github.com/ViBiOh/httputils/v4/pkg/httpjson"
	"github.com/ViBiOh/httputils/v4/pkg/redis"
	"github.com/ViBiOh/httputils/v4/pkg/request"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/editor"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/version"
	"go.opentelemetry.io/otel/trace"
)

const (
	authRoot = "https://www.reddit.com"
	apiRoot  = "https://oauth.reddit.com"

	tokenExpirationMargin = time.Minute

	maxDownloadSize int64 = 4 << 20
)

var (
	// ErrRateLimitExceeded occurs when Reddit throttles us.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	cacheDuration = time.Hour * 24

	listingCategories = map[string]bool{
		"hot":    true,
		"new":    true,
		"top":    true,
		"rising": true,
	}
)

// Post is one image candidate from a listing. Subreddit and ID are filled
// when the listing provides them.
type Post struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Subreddit string `json:"subreddit,omitempty"`
	ID        string `json:"id,omitempty"`
	Score     int64  `json:"score"`
}

// Subreddit describes a community from discovery search.
type Subreddit struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Subscribers int64  `json:"subscribers"`
}

type auth struct {
	mutex      sync.Mutex
	token      string
	expiration time.Time
}

type oauthToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type listingKey struct {
	Subreddit string
	Category  string
	Limit     int
}

type searchKey struct {
	Keyword string
	Limit   int
}

// Service of package
type Service struct {
	listings     *cache.Cache[listingKey, []Post]
	searches     *cache.Cache[searchKey, []Post]
	subreddits   *cache.Cache[searchKey, []Subreddit]
	auth         *auth
	authRoot     string
	apiRoot      string
	clientID     string
	clientSecret string
	userAgent    string
}

// Config of package
type Config struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
}

// Flags adds flags for configuring package
func Flags(fs *flag.FlagSet, prefix string, overrides ...flags.Override) *Config {
	var config Config

	flags.New("ClientId", "Reddit application client ID").Prefix(prefix).DocPrefix("reddit").StringVar(fs, &config.ClientID, "", overrides)
	flags.New("ClientSecret", "Reddit application client secret").Prefix(prefix).DocPrefix("reddit").StringVar(fs, &config.ClientSecret, "", overrides)
	flags.New("UserAgent", "User agent for API requests").Prefix(prefix).DocPrefix("reddit").StringVar(fs, &config.UserAgent, "MemeGenerator/1.0", overrides)

	return &config
}

// New creates new Service from Config
func New(config *Config, redisClient redis.Client, tracerProvider trace.TracerProvider) *Service {
	service := &Service{
		auth:         &auth{},
		authRoot:     authRoot,
		apiRoot:      apiRoot,
		clientID:     strings.TrimSpace(config.ClientID),
		clientSecret: strings.TrimSpace(config.ClientSecret),
		userAgent:    strings.TrimSpace(config.UserAgent),
	}

	service.listings = cache.New(redisClient, func(key listingKey) string {
		return version.Redis(fmt.Sprintf("reddit:%s:%s:%d", key.Subreddit, key.Category, key.Limit))
	}, service.fetchListing, tracerProvider).WithTTL(cacheDuration)

	service.searches = cache.New(redisClient, func(key searchKey) string {
		return version.Redis(fmt.Sprintf("reddit:search:%s:%d", key.Keyword, key.Limit))
	}, service.fetchSearch, tracerProvider).WithTTL(cacheDuration)

	service.subreddits = cache.New(redisClient, func(key searchKey) string {
		return version.Redis(fmt.Sprintf("reddit:subreddits:%s:%d", key.Keyword, key.Limit))
	}, service.fetchSubreddits, tracerProvider).WithTTL(cacheDuration)

	return service
}

// Enabled checks that credentials are configured.
func (s *Service) Enabled() bool {
	return len(s.clientID) != 0 && len(s.clientSecret) != 0
}

func (s *Service) accessToken(ctx context.Context) (string, error) {
	s.auth.mutex.Lock()
	defer s.auth.mutex.Unlock()

	if len(s.auth.token) != 0 && time.Now().Before(s.auth.expiration) {
		return s.auth.token, nil
	}

	values := url.Values{}
	values.Set("grant_type", "client_credentials")

	resp, err := request.Post(s.authRoot+"/api/v1/access_token").
		BasicAuth(s.clientID, s.clientSecret).
		Header("User-Agent", s.userAgent).
		Form(ctx, values)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}

	token, err := httpjson.Read[oauthToken](resp)
	if err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}

	if len(token.AccessToken) == 0 {
		return "", errors.New("empty access token")
	}

	s.auth.token = token.AccessToken
	s.auth.expiration = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - tokenExpirationMargin)

	return s.auth.token, nil
}

func (s *Service) get(ctx context.Context, path string) (*http.Response, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	resp, err := request.Get(s.apiRoot+path).
		Header("Authorization", "Bearer "+token).
		Header("User-Agent", s.userAgent).
		Send(ctx, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return nil, ErrRateLimitExceeded
		}

		return nil, err
	}

	return resp, nil
}

// Posts lists image posts from a subreddit. Category is one of hot, new,
// top, rising. Stickied, video and non-image posts are filtered out.
func (s *Service) Posts(ctx context.Context, subreddit, category string, limit int) ([]Post, error) {
	if !listingCategories[category] {
		return nil, fmt.Errorf("invalid category `%s`", category)
	}

	return s.listings.Get(ctx, listingKey{Subreddit: subreddit, Category: category, Limit: limit})
}

// Search looks for image posts matching the keyword across subreddits.
func (s *Service) Search(ctx context.Context, keyword string, limit int) ([]Post, error) {
	return s.searches.Get(ctx, searchKey{Keyword: keyword, Limit: limit})
}

// SearchSubreddits discovers communities matching the keyword.
func (s *Service) SearchSubreddits(ctx context.Context, keyword string, limit int) ([]Subreddit, error) {
	return s.subreddits.Get(ctx, searchKey{Keyword: keyword, Limit: limit})
}

func (s *Service) fetchListing(ctx context.Context, key listingKey) ([]Post, error) {
	resp, err := s.get(ctx, fmt.Sprintf("/r/%s/%s?limit=%d&raw_json=1", url.PathEscape(key.Subreddit), key.Category, key.Limit))
	if err != nil {
		return nil, fmt.Errorf("list r/%s: %w", key.Subreddit, err)
	}

	return parseListing(resp)
}

func (s *Service) fetchSearch(ctx context.Context, key searchKey) ([]Post, error) {
	resp, err := s.get(ctx, fmt.Sprintf("/search?q=%s&limit=%d&type=link&raw_json=1", url.QueryEscape(key.Keyword), key.Limit))
	if err != nil {
		return nil, fmt.Errorf("search `%s`: %w", key.Keyword, err)
	}

	return parseListing(resp)
}

func (s *Service) fetchSubreddits(ctx context.Context, key searchKey) ([]Subreddit, error) {
	resp, err := s.get(ctx, fmt.Sprintf("/subreddits/search?q=%s&limit=%d&raw_json=1", url.QueryEscape(key.Keyword), key.Limit))
	if err != nil {
		return nil, fmt.Errorf("search subreddits `%s`: %w", key.Keyword, err)
	}

	content, err := httpjson.Read[listing](resp)
	if err != nil {
		return nil, fmt.Errorf("parse subreddits response: %w", err)
	}

	output := make([]Subreddit, 0, len(content.Data.Children))
	for _, child := range content.Data.Children {
		output = append(output, Subreddit{
			Name:        child.Data.DisplayName,
			Title:       child.Data.Title,
			Subscribers: child.Data.Subscribers,
		})
	}

	return output, nil
}

// Download fetches the raw content of an image post URL.
func (s *Service) Download(ctx context.Context, imageURL string) ([]byte, error) {
	resp, err := request.Get(imageURL).Header("User-Agent", s.userAgent).Send(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch `%s`: %w", imageURL, err)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize))
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}

	return payload, nil
}

type childData struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	ID          string `json:"id"`
	Subreddit   string `json:"subreddit"`
	DisplayName string `json:"display_name"`
	Score       int64  `json:"score"`
	Subscribers int64  `json:"subscribers"`
	Stickied    bool   `json:"stickied"`
	IsVideo     bool   `json:"is_video"`
}

type listing struct {
	Data struct {
		Children []struct {
			Data childData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func parseListing(resp *http.Response) ([]Post, error) {
	content, err := httpjson.Read[listing](resp)
	if err != nil {
		return nil, fmt.Errorf("parse listing response: %w", err)
	}

	var output []Post

	for _, child := range content.Data.Children {
		post := child.Data

		if post.Stickied || post.IsVideo {
			continue
		}

		if !editor.IsImageURL(post.URL) || editor.IsVideoURL(post.URL) {
			continue
		}

		output = append(output, Post{
			Title:     post.Title,
			URL:       post.URL,
			Score:     post.Score,
			ID:        post.ID,
			Subreddit: post.Subreddit,
		})
	}

	return output, nil
}
