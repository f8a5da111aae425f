package handlers

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed apidocs
var apidocs embed.FS

// RegisterSwagger serves the Swagger UI at /swagger/index.html and the
// OpenAPI document it loads at /swagger/doc.json.
func RegisterSwagger(r *gin.Engine) {
	docs, err := fs.Sub(apidocs, "apidocs")
	if err != nil {
		panic(err)
	}
	r.StaticFileFS("/swagger/index.html", "ui.html", http.FS(docs))
	r.StaticFileFS("/swagger/doc.json", "openapi.json", http.FS(docs))
}
