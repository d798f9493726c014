package service

import (
	"html/template"
	"net/url"
	"strings"
)

var fragmentTemplate = template.Must(template.New("fragment").Parse(
	`<a href="{{.URL}}"><img src="{{.ThumbURL}}" alt="{{.Name}}"></a><br />`,
))

type fragmentData struct {
	Name     string
	URL      string
	ThumbURL string
}

// PublicURL joins baseURL and a stored file name, escaping the name as one
// path segment so characters like '#' and '?' stay part of it.
func PublicURL(baseURL, name string) string {
	return strings.TrimRight(baseURL, "/") + "/" + url.PathEscape(name)
}

// RenderFragment returns the snippet the admin widget inserts into the post
// editor: the thumbnail, linking to the full-size original. The URLs are
// expected to come from PublicURL.
func RenderFragment(name, originalURL, thumbURL string) (string, error) {
	var sb strings.Builder
	err := fragmentTemplate.Execute(&sb, fragmentData{
		Name:     name,
		URL:      originalURL,
		ThumbURL: thumbURL,
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
