// Package web embeds the admin page template and the upload widget assets.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates
var templates embed.FS

//go:embed shared
var shared embed.FS

// Templates parses every admin template.
func Templates() (*template.Template, error) {
	return template.ParseFS(templates, "templates/admin/*.html")
}

// Shared is the widget asset tree served under /shared/img_upload.
func Shared() fs.FS {
	sub, err := fs.Sub(shared, "shared")
	if err != nil {
		panic(err)
	}
	return sub
}
