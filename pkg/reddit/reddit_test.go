package reddit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ViBiOh/httputils/v4/pkg/redis"
)

const tokenPayload = `{"access_token":"test-token","token_type":"bearer","expires_in":3600}`

const listingPayload = `{
	"data": {
		"children": [
			{"data": {"title": "good meme", "url": "https://i.redd.it/a.jpg", "score": 420, "id": "aa", "subreddit": "memes"}},
			{"data": {"title": "pinned", "url": "https://i.redd.it/b.jpg", "score": 1, "id": "bb", "subreddit": "memes", "stickied": true}},
			{"data": {"title": "clip", "url": "https://v.redd.it/cc", "score": 9000, "id": "cc", "subreddit": "memes", "is_video": true}},
			{"data": {"title": "text post", "url": "https://www.reddit.com/r/memes/comments/dd", "score": 7, "id": "dd", "subreddit": "memes"}},
			{"data": {"title": "another", "url": "https://i.redd.it/e.png", "score": 99, "id": "ee", "subreddit": "memes"}}
		]
	}
}`

const subredditsPayload = `{
	"data": {
		"children": [
			{"data": {"display_name": "guitarmemes", "title": "Guitar Memes", "subscribers": 12345}},
			{"data": {"display_name": "memes", "title": "Memes!", "subscribers": 999}}
		]
	}
}`

func testService(t *testing.T) (*Service, *int) {
	t.Helper()

	tokenCalls := 0

	authServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/access_token" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		if username, password, ok := r.BasicAuth(); !ok || username != "id" || password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		tokenCalls++
		_, _ = w.Write([]byte(tokenPayload))
	}))
	t.Cleanup(authServer.Close)

	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch r.URL.Path {
		case "/r/memes/hot", "/search":
			_, _ = w.Write([]byte(listingPayload))
		case "/subreddits/search":
			_, _ = w.Write([]byte(subredditsPayload))
		case "/r/throttled/hot":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(apiServer.Close)

	service := New(&Config{ClientID: "id", ClientSecret: "secret", UserAgent: "MemeGenerator/1.0"}, redis.Noop{}, nil)
	service.authRoot = authServer.URL
	service.apiRoot = apiServer.URL

	return service, &tokenCalls
}

func TestPosts(t *testing.T) {
	service, tokenCalls := testService(t)

	posts, err := service.Posts(context.Background(), "memes", "hot", 25)
	if err != nil {
		t.Fatalf("Posts() = %s", err)
	}

	if len(posts) != 2 {
		t.Fatalf("Posts() = %v, want stickied, video and non-image posts filtered", posts)
	}

	if posts[0].Title != "good meme" || posts[0].URL != "https://i.redd.it/a.jpg" || posts[0].Score != 420 {
		t.Errorf("Posts()[0] = %v", posts[0])
	}

	if posts[1].ID != "ee" || posts[1].Subreddit != "memes" {
		t.Errorf("Posts()[1] = %v", posts[1])
	}

	if _, err := service.Posts(context.Background(), "memes", "hot", 25); err != nil {
		t.Fatalf("second Posts() = %s", err)
	}

	if *tokenCalls != 1 {
		t.Errorf("token fetched %d times, want 1", *tokenCalls)
	}
}

func TestPostsInvalidCategory(t *testing.T) {
	service, _ := testService(t)

	if _, err := service.Posts(context.Background(), "memes", "best", 25); err == nil {
		t.Error("Posts() accepted an invalid category")
	}
}

func TestPostsRateLimited(t *testing.T) {
	service, _ := testService(t)

	_, err := service.Posts(context.Background(), "throttled", "hot", 25)
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Errorf("Posts() = %v, want ErrRateLimitExceeded", err)
	}
}

func TestSearchSubreddits(t *testing.T) {
	service, _ := testService(t)

	subreddits, err := service.SearchSubreddits(context.Background(), "guitar", 10)
	if err != nil {
		t.Fatalf("SearchSubreddits() = %s", err)
	}

	if len(subreddits) != 2 {
		t.Fatalf("SearchSubreddits() = %v, want 2 results", subreddits)
	}

	if subreddits[0].Name != "guitarmemes" || subreddits[0].Subscribers != 12345 {
		t.Errorf("SearchSubreddits()[0] = %v", subreddits[0])
	}
}

func TestEnabled(t *testing.T) {
	if !(&Service{clientID: "id", clientSecret: "secret"}).Enabled() {
		t.Error("Enabled() = false with credentials")
	}

	if (&Service{}).Enabled() {
		t.Error("Enabled() = true without credentials")
	}
}

func TestDownload(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		_, _ = w.Write([]byte("image bytes"))
	}))
	defer mockServer.Close()

	service := &Service{userAgent: "test-agent"}

	payload, err := service.Download(context.Background(), mockServer.URL+"/image.jpg")
	if err != nil {
		t.Fatalf("Download() = %s", err)
	}

	if string(payload) != "image bytes" {
		t.Errorf("Download() = `%s`", payload)
	}
}
