// Package frontend embeds the ops debug page: a single static page that
// subscribes to /events and renders the live feed. Handy for verifying a
// deployment without the full CRM frontend.
package frontend

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFiles embed.FS

func Handler() http.Handler {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
