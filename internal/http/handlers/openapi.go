package handlers

import (
	_ "embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

//go:embed openapi.json
var openAPISpec []byte

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <title>{{.Title}} {{.Version}}</title>
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <style>body { margin: 0; } redoc { display: block; height: 100vh; }</style>
  </head>
  <body>
    <redoc spec-url="{{.SpecURL}}"></redoc>
    <script src="https://cdn.jsdelivr.net/npm/redoc@2.2.0/bundles/redoc.standalone.js"></script>
  </body>
</html>`))

type docsInfo struct {
	Title   string
	Version string
	SpecURL string
	ETag    string
}

// openAPIInfo reads the title and version out of the embedded document once.
var openAPIInfo = sync.OnceValue(func() docsInfo {
	info := docsInfo{Title: "API", SpecURL: "/v1/openapi.json"}
	var doc struct {
		Info struct {
			Title   string `json:"title"`
			Version string `json:"version"`
		} `json:"info"`
	}
	if err := json.Unmarshal(openAPISpec, &doc); err == nil && doc.Info.Title != "" {
		info.Title, info.Version = doc.Info.Title, doc.Info.Version
	}
	info.ETag = `"` + strconv.FormatUint(xxhash.Sum64(openAPISpec), 16) + `"`
	return info
})

func (a *App) OpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	etag := openAPIInfo().ETag
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=300")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}

func (a *App) OpenAPIDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := docsPage.Execute(w, openAPIInfo()); err != nil {
		a.Logger.Error().Err(err).Msg("render api docs")
	}
}
