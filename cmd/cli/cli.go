package main

import (
	"context"
	"flag"
	"image"
	"log/slog"
	"os"

	"github.com/ViBiOh/httputils/v4/pkg/logger"
	"github.com/ViBiOh/httputils/v4/pkg/redis"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/editor"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/imgflip"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/memegen"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/openai"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/reddit"
)

func main() {
	fs := flag.NewFlagSet("shreddit-cli", flag.ExitOnError)

	loggerConfig := logger.Flags(fs, "logger")
	editorConfig := editor.Flags(fs, "")
	memegenConfig := memegen.Flags(fs, "")
	redditConfig := reddit.Flags(fs, "reddit")
	openaiConfig := openai.Flags(fs, "openai")
	imgflipConfig := imgflip.Flags(fs, "imgflip")

	input := fs.String("input", "", "Input image file")
	from := fs.String("from", "", "Input image URL")
	subreddit := fs.String("subreddit", "", "Pick a random image post from this subreddit")
	category := fs.String("category", "hot", "Subreddit listing category (hot, new, top, rising)")
	search := fs.String("search", "", "Pick a random image post matching this keyword")
	template := fs.String("template", "", "ImgFlip template ID")
	top := fs.String("top", "", "Top caption")
	bottom := fs.String("bottom", "", "Bottom caption")
	ai := fs.Bool("ai", false, "Generate captions with AI")
	hint := fs.String("hint", "", "Theme hint for AI captions")
	output := fs.String("output", "", "Output filename, generated when empty")

	_ = fs.Parse(os.Args[1:])

	ctx := context.Background()

	logger.Init(ctx, loggerConfig)

	editorService := editor.New(editorConfig)
	if editorService.UsesBuiltinFont() {
		slog.WarnContext(ctx, "no TTF font found, using built-in fallback")
	}

	var content image.Image
	var err error

	if len(*input) != 0 {
		content, err = fromFile(ctx, editorService, openai.New(openaiConfig), *input, *top, *bottom, *hint, *ai)
	} else {
		memegenService := memegen.New(
			memegenConfig,
			editorService,
			reddit.New(redditConfig, redis.Noop{}, nil),
			openai.New(openaiConfig),
			imgflip.New(imgflipConfig, redis.Noop{}, nil),
			nil,
			nil,
		)

		content, _, err = memegenService.Generate(ctx, memegen.Request{
			From:      *from,
			Subreddit: *subreddit,
			Category:  *category,
			Search:    *search,
			Template:  *template,
			Top:       editor.StripEmoji(*top),
			Bottom:    editor.StripEmoji(*bottom),
			Hint:      *hint,
			AI:        *ai,
		})
	}

	logger.FatalfOnErr(ctx, err, "generate meme")

	path, err := editorService.Save(content, *output)
	logger.FatalfOnErr(ctx, err, "save meme")

	slog.InfoContext(ctx, "meme generated", "path", path)
}

func fromFile(ctx context.Context, editorService editor.Service, openaiService openai.Service, input, top, bottom, hint string, ai bool) (image.Image, error) {
	source, err := editor.FromFile(input)
	if err != nil {
		return nil, err
	}

	if ai {
		payload, err := os.ReadFile(input)
		if err != nil {
			return nil, err
		}

		generated, err := openaiService.GenerateCaptions(ctx, payload, hint)
		if err != nil {
			return nil, err
		}

		top, bottom = generated.Top, generated.Bottom
	}

	captions := []editor.Caption{
		{Text: editor.StripEmoji(top), Region: editor.Top},
		{Text: editor.StripEmoji(bottom), Region: editor.Bottom},
	}

	return editorService.Compose(source, captions), nil
}
