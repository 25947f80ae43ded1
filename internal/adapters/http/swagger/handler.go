// Package swagger serves the OpenAPI description and a ReDoc page for it.
package swagger

import (
	_ "embed"
	"net/http"
)

// OpenAPI is the service's OpenAPI 3 description.
//
//go:embed openapi.yaml
var OpenAPI []byte

// Paths served by Routes.
const (
	OpenAPIPath = "/openapi.yaml"
	DocsPath = "/api-docs"
)

// Routes returns the documentation handlers keyed by path.
func Routes() map[string]http.Handler {
	return map[string]http.Handler{
		OpenAPIPath: http.HandlerFunc(serveOpenAPI),
		DocsPath: http.HandlerFunc(serveDocs),
	}
}

func serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(OpenAPI)
}

func serveDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

const indexHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>11Votes consensus API</title>
    <style>body{margin:0;padding:0}</style>
  </head>
  <body>
    <redoc id="redoc-container"></redoc>
    <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
    <script>Redoc.init('` + OpenAPIPath + `', { suppressWarnings: true }, document.getElementById('redoc-container'));</script>
  </body>
</html>`
