// Package web holds the server-rendered page templates.
package web

import (
	"embed"
	"html/template"

	"github.com/everycheese/everycheese/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page carries what the shared layout needs. Page view models embed it.
type Page struct {
	Title string
	User  *models.User
}

// NotFoundPage is the view model of not_found.html. An empty Message shows
// the generic text.
type NotFoundPage struct {
	Page
	Message string
}

func NotFound(u *models.User, msg string) NotFoundPage {
	return NotFoundPage{Page: Page{Title: "Not Found", User: u}, Message: msg}
}

var funcs = template.FuncMap{
	"displayName": func(u *models.User) string { return u.DisplayName() },
}

// Templates parses the embedded template set. Pages are addressed by file
// name, e.g. "cheese_list.html".
func Templates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}

// MustTemplates is Templates for process start-up and tests.
func MustTemplates() *template.Template {
	return template.Must(Templates())
}
