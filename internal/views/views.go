// Package views holds the console's server-rendered HTML templates.
package views

import (
	"embed"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var files embed.FS

// Funcs are the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"lower":   strings.ToLower,
		"fieldID": func(name string) string { return "field-" + name },
		"eqs":     func(a, b string) bool { return a == b },
	}
}

// Load parses the embedded templates. Page templates are addressed by file name, e.g.
// "list.html".
func Load() (*template.Template, error) {
	return template.New("console").Funcs(Funcs()).ParseFS(files, "templates/*.html")
}
