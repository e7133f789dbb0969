package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"strings"

	"github.com/ViBiOh/flags"
	"github.com/ViBiOh/httputils/v4/pkg/httpjson"
	"github.com/ViBiOh/httputils/v4/pkg/request"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/editor"
)

const (
	apiRoot = "https://api.openai.com"

	systemPrompt = "You are a humorous meme caption generator. Given an image, create a funny meme with a top text and bottom text. Be witty and relevant to the image content. Return ONLY the text in the format 'TOP TEXT: [your text here]\nBOTTOM TEXT: [your text here]'"

	maxTokens = 100
)

// ErrNoCaption occurs when the model returns nothing usable.
var ErrNoCaption = errors.New("no caption generated")

// Captions is the pair of texts for the classic two-region meme.
type Captions struct {
	Top    string
	Bottom string
}

// Service of package
type Service struct {
	apiRoot string
	apiKey  string
	model   string
}

// Config of package
type Config struct {
	APIKey string
	Model  string
}

// Flags adds flags for configuring package
func Flags(fs *flag.FlagSet, prefix string, overrides ...flags.Override) *Config {
	var config Config

	flags.New("ApiKey", "OpenAI API Key").Prefix(prefix).DocPrefix("openai").StringVar(fs, &config.APIKey, "", overrides)
	flags.New("Model", "Model with vision support").Prefix(prefix).DocPrefix("openai").StringVar(fs, &config.Model, "gpt-4o", overrides)

	return &config
}

// New creates new Service from Config
func New(config *Config) Service {
	return Service{
		apiRoot: apiRoot,
		apiKey:  strings.TrimSpace(config.APIKey),
		model:   strings.TrimSpace(config.Model),
	}
}

// Enabled checks that an API key is configured.
func (s Service) Enabled() bool {
	return len(s.apiKey) != 0
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// GenerateCaptions asks the model for a top/bottom pair for the given image.
// Hint, when present, steers the theme. Output is sanitized: no emoji
// reaches composition.
func (s Service) GenerateCaptions(ctx context.Context, imageContent []byte, hint string) (Captions, error) {
	userText := "Create a funny meme caption for this image."
	if len(hint) != 0 {
		userText = fmt.Sprintf("Create a funny meme caption for this image, about %s.", hint)
	}

	payload := chatRequest{
		Model:     s.model,
		MaxTokens: maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: userText},
				{Type: "image_url", ImageURL: &imageURL{
					URL: dataURL(imageContent),
				}},
			}},
		},
	}

	resp, err := request.Post(s.apiRoot+"/v1/chat/completions").
		Header("Authorization", "Bearer "+s.apiKey).
		JSON(ctx, payload)
	if err != nil {
		return Captions{}, fmt.Errorf("request completion: %w", err)
	}

	completion, err := httpjson.Read[chatResponse](resp)
	if err != nil {
		return Captions{}, fmt.Errorf("parse completion response: %w", err)
	}

	if len(completion.Choices) == 0 {
		return Captions{}, ErrNoCaption
	}

	output := parseCaptions(completion.Choices[0].Message.Content)
	if len(output.Top) == 0 && len(output.Bottom) == 0 {
		return Captions{}, ErrNoCaption
	}

	return output, nil
}

// dataURL inlines the image, with the media type sniffed from its content so
// PNG or GIF screenshots are not mislabeled as JPEG.
func dataURL(imageContent []byte) string {
	mediaType, _, _ := strings.Cut(http.DetectContentType(imageContent), ";")

	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(imageContent)
}

// parseCaptions extracts the TOP TEXT / BOTTOM TEXT pair from model output,
// tolerating a missing line.
func parseCaptions(content string) Captions {
	var output Captions

	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimSpace(line)

		if after, found := strings.CutPrefix(line, "TOP TEXT:"); found {
			output.Top = editor.StripEmoji(strings.TrimSpace(after))
		} else if after, found := strings.CutPrefix(line, "BOTTOM TEXT:"); found {
			output.Bottom = editor.StripEmoji(strings.TrimSpace(after))
		}
	}

	return output
}
