package main

import (
	"net/http"

	"github.com/ViBiOh/httputils/v4/pkg/renderer"
)

func newPort(services services) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/api/memes", services.memegen.Handler())
	mux.Handle("/api/gifs", services.memegen.GifHandler())
	mux.Handle("/api/search", services.memegen.SearchHandler())
	mux.Handle("/api/subreddits", services.memegen.SubredditsHandler())
	mux.Handle("/api/templates", services.memegen.TemplatesHandler())
	mux.Handle("/api/caption", services.memegen.CaptionHandler())

	services.renderer.RegisterMux(mux, func(_ http.ResponseWriter, _ *http.Request) (renderer.Page, error) {
		return renderer.NewPage("public", http.StatusOK, nil), nil
	})

	return mux
}
