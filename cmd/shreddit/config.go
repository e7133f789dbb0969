package main

import (
	"flag"
	"os"

	"github.com/ViBiOh/flags"
	"github.com/ViBiOh/httputils/v4/pkg/alcotest"
	"github.com/ViBiOh/httputils/v4/pkg/cors"
	"github.com/ViBiOh/httputils/v4/pkg/health"
	"github.com/ViBiOh/httputils/v4/pkg/logger"
	"github.com/ViBiOh/httputils/v4/pkg/owasp"
	"github.com/ViBiOh/httputils/v4/pkg/pprof"
	"github.com/ViBiOh/httputils/v4/pkg/redis"
	"github.com/ViBiOh/httputils/v4/pkg/renderer"
	"github.com/ViBiOh/httputils/v4/pkg/server"
	"github.com/ViBiOh/httputils/v4/pkg/telemetry"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/editor"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/imgflip"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/memegen"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/openai"
	"github.com/jackmcgaughey/reddit-meme-generator/pkg/reddit"
)

type configuration struct {
	logger    *logger.Config
	alcotest  *alcotest.Config
	telemetry *telemetry.Config
	pprof     *pprof.Config
	health    *health.Config

	server   *server.Config
	owasp    *owasp.Config
	cors     *cors.Config
	renderer *renderer.Config

	redis *redis.Config

	editor  *editor.Config
	memegen *memegen.Config
	reddit  *reddit.Config
	openai  *openai.Config
	imgflip *imgflip.Config
}

func newConfig() configuration {
	fs := flag.NewFlagSet("shreddit", flag.ExitOnError)
	fs.Usage = flags.Usage(fs)

	config := configuration{
		logger:    logger.Flags(fs, "logger"),
		alcotest:  alcotest.Flags(fs, ""),
		telemetry: telemetry.Flags(fs, "telemetry"),
		pprof:     pprof.Flags(fs, "pprof"),
		health:    health.Flags(fs, ""),

		server:   server.Flags(fs, ""),
		owasp:    owasp.Flags(fs, "", flags.NewOverride("Csp", "default-src 'self'; base-uri 'self'; script-src 'self' 'httputils-nonce'; style-src 'self' 'httputils-nonce'; img-src 'self' i.redd.it i.imgflip.com")),
		cors:     cors.Flags(fs, "cors"),
		renderer: renderer.Flags(fs, "", flags.NewOverride("Title", "Shreddit"), flags.NewOverride("PublicURL", "https://shreddit.app")),

		redis: redis.Flags(fs, "redis"),

		editor:  editor.Flags(fs, ""),
		memegen: memegen.Flags(fs, ""),
		reddit:  reddit.Flags(fs, "reddit"),
		openai:  openai.Flags(fs, "openai"),
		imgflip: imgflip.Flags(fs, "imgflip"),
	}

	_ = fs.Parse(os.Args[1:])

	return config
}
