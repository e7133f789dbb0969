package main

import (
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/ViBiOh/httputils/v4/pkg/renderer"
	"github.com/ViBiOh/httputils/v4/pkg/server"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/editor"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/imgflip"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/memegen"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/openai"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/reddit"
)

//go:embed templates static
var content embed.FS

type services struct {
	server   *server.Server
	renderer *renderer.Service

	memegen memegen.Service
}

func newServices(ctx context.Context, config configuration, clients clients) (services, error) {
	rendererService, err := renderer.New(ctx, config.renderer, content, template.FuncMap{}, clients.telemetry.MeterProvider(), clients.telemetry.TracerProvider())
	if err != nil {
		return services{}, fmt.Errorf("renderer: %w", err)
	}

	memegenService := memegen.New(
		config.memegen,
		editor.New(config.editor),
		reddit.New(config.reddit, clients.redis, clients.telemetry.TracerProvider()),
		openai.New(config.openai),
		imgflip.New(config.imgflip, clients.redis, clients.telemetry.TracerProvider()),
		clients.telemetry.MeterProvider(),
		clients.telemetry.TracerProvider(),
	)

	return services{
		server:   server.New(config.server),
		renderer: rendererService,

		memegen: memegenService,
	}, nil
}
