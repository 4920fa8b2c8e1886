// Package templates holds the HTML components served by the web package.
// The _templ.go files are generated from the .templ sources by templ generate.
package templates

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.960 generate

import (
	"strings"

	"github.com/JonMunkholm/geoimport/internal/core"
)

// formatsOf returns d's formats, or a single blank one so d still gets a row.
func formatsOf(d core.HandlerDescriptor) []core.Format {
	if len(d.Formats) == 0 {
		return []core.Format{{}}
	}
	return d.Formats
}

// actionList joins d's action names.
func actionList(d core.HandlerDescriptor) string {
	names := make([]string, len(d.Actions))
	for i, a := range d.Actions {
		names[i] = a.String()
	}
	return strings.Join(names, ", ")
}
