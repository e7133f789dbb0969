package memegen

import (
	"context"
	"errors"
	"flag"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/jackmcgaughey/reddit-meme-generator/pkg/editor"
)

func testService(t *testing.T) Service {
	t.Helper()

	fs := flag.NewFlagSet("memegen", flag.ContinueOnError)
	editorConfig := editor.Flags(fs, "")

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse flags: %s", err)
	}

	return Service{
		editor:    editor.New(editorConfig),
		tmpFolder: t.TempDir(),
	}
}

func testImageServer(t *testing.T) *httptest.Server {
	t.Helper()

	source := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := 0; x < 64; x++ {
		for y := 0; y < 48; y++ {
			source.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 5), 128, 255})
		}
	}

	frame := image.NewPaletted(image.Rect(0, 0, 64, 48), color.Palette{color.White, color.Black, color.RGBA{255, 0, 0, 255}})

	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/image.png":
			w.Header().Set("Content-Type", "image/png")
			_ = png.Encode(w, source)

		case "/image.gif":
			w.Header().Set("Content-Type", "image/gif")
			_ = gif.EncodeAll(w, &gif.GIF{Image: []*image.Paletted{frame}, Delay: []int{10}})

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	t.Cleanup(mockServer.Close)

	return mockServer
}

func TestParseRequest(t *testing.T) {
	query := url.Values{}
	query.Set("from", " https://example.com/image.png ")
	query.Set("top", "hello 😂 world")
	query.Set("ai", "true")

	req := parseRequest(query)

	if req.From != "https://example.com/image.png" {
		t.Errorf("From = `%s`", req.From)
	}

	if req.Top != "hello  world" {
		t.Errorf("Top = `%s`", req.Top)
	}

	if !req.AI {
		t.Error("AI should be true")
	}
}

func TestRequestCheck(t *testing.T) {
	cases := map[string]struct {
		req  Request
		want error
	}{
		"no source":        {Request{Top: "hello"}, ErrNoSource},
		"no caption":       {Request{From: "https://example.com/a.png"}, ErrNoCaption},
		"ai needs no text": {Request{From: "https://example.com/a.png", AI: true}, nil},
		"complete":         {Request{Subreddit: "guitarmemes", Top: "hello"}, nil},
	}

	for intention, testCase := range cases {
		t.Run(intention, func(t *testing.T) {
			if got := testCase.req.check(); !errors.Is(got, testCase.want) {
				t.Errorf("check() = %v, want %v", got, testCase.want)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	service := testService(t)
	mockServer := testImageServer(t)

	output, sourceURL, err := service.Generate(context.Background(), Request{
		From: mockServer.URL + "/image.png",
		Top:  "when it works",
	})
	if err != nil {
		t.Fatalf("Generate() = %s", err)
	}

	if sourceURL != mockServer.URL+"/image.png" {
		t.Errorf("Generate() source = `%s`", sourceURL)
	}

	if bounds := output.Bounds(); bounds.Dx() != 64 || bounds.Dy() != 48 {
		t.Errorf("Generate() bounds = %v", bounds)
	}
}

func TestHandler(t *testing.T) {
	service := testService(t)
	mockServer := testImageServer(t)

	t.Run("serves jpeg", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/?from="+url.QueryEscape(mockServer.URL+"/image.png")+"&top=hello&bottom=world", nil)

		service.Handler().ServeHTTP(recorder, request)

		if recorder.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
		}

		if contentType := recorder.Header().Get("Content-Type"); contentType != "image/jpeg" {
			t.Errorf("Content-Type = `%s`", contentType)
		}

		if _, err := jpeg.Decode(recorder.Body); err != nil {
			t.Errorf("decode response: %s", err)
		}
	})

	t.Run("missing caption", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/?from="+url.QueryEscape(mockServer.URL+"/image.png"), nil)

		service.Handler().ServeHTTP(recorder, request)

		if recorder.Code != http.StatusBadRequest {
			t.Errorf("status = %d", recorder.Code)
		}
	})

	t.Run("missing source", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/?top=hello", nil)

		service.Handler().ServeHTTP(recorder, request)

		if recorder.Code != http.StatusBadRequest {
			t.Errorf("status = %d", recorder.Code)
		}
	})

	t.Run("unknown image", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/?from="+url.QueryEscape(mockServer.URL+"/missing.png")+"&top=hello", nil)

		service.Handler().ServeHTTP(recorder, request)

		if recorder.Code != http.StatusNotFound {
			t.Errorf("status = %d", recorder.Code)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodPost, "/", nil)

		service.Handler().ServeHTTP(recorder, request)

		if recorder.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d", recorder.Code)
		}
	})
}

func TestServeCachedRoundTrip(t *testing.T) {
	service := testService(t)

	source := image.NewRGBA(image.Rect(0, 0, 16, 16))
	service.storeInCache("cache-key", source)

	file, err := os.Open(service.cacheFilename("cache-key"))
	if err != nil {
		t.Fatalf("open stored file: %s", err)
	}

	if _, err := jpeg.Decode(file); err != nil {
		t.Errorf("decode stored file: %s", err)
	}

	if err := file.Close(); err != nil {
		t.Errorf("close stored file: %s", err)
	}

	recorder := httptest.NewRecorder()
	if !service.serveCached(context.Background(), recorder, "cache-key", false) {
		t.Fatal("serveCached() should hit after store")
	}

	if _, err := jpeg.Decode(recorder.Body); err != nil {
		t.Errorf("decode cached response: %s", err)
	}

	if service.serveCached(context.Background(), httptest.NewRecorder(), "other-key", false) {
		t.Error("serveCached() should miss for unknown key")
	}
}

func TestGenerateGif(t *testing.T) {
	service := testService(t)
	mockServer := testImageServer(t)

	output, err := service.GenerateGif(context.Background(), Request{
		From: mockServer.URL + "/image.gif",
		Top:  "animated",
	})
	if err != nil {
		t.Fatalf("GenerateGif() = %s", err)
	}

	if len(output.Image) != 1 {
		t.Errorf("GenerateGif() frames = %d", len(output.Image))
	}
}
