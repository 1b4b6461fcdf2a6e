package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// Style is a named tile provider: a URL template with {z}, {x}, {y} and
// optionally {s} tokens, plus the folder its output lands in.
type Style struct {
	Name     string `json:"name"`
	Folder   string `json:"folder"`
	Template string `json:"template"`
}

// SourceExt returns the file extension of the intermediate source image,
// derived from the template path.
func (s Style) SourceExt() string {
	if i := strings.LastIndex(s.Template, "."); i != -1 {
		ext := s.Template[i+1:]
		if len(ext) > 0 && len(ext) <= 4 && !strings.ContainsAny(ext, "/{}") {
			return ext
		}
	}
	return "png"
}

// Built-in tile providers. Carto basemaps need no key but rate limits
// apply.
var builtinStyles = map[string]Style{
	"osm": {
		Name:     "osm",
		Folder:   "osm",
		Template: "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
	},
	"carto-light": {
		Name:     "carto-light",
		Folder:   "carto-light",
		Template: "https://cartodb-basemaps-{s}.global.ssl.fastly.net/light_all/{z}/{x}/{y}.png",
	},
	"carto-dark": {
		Name:     "carto-dark",
		Folder:   "carto-dark",
		Template: "https://cartodb-basemaps-{s}.global.ssl.fastly.net/dark_all/{z}/{x}/{y}.png",
	},
}

// StyleByName looks up a built-in style.
func StyleByName(name string) (Style, error) {
	s, ok := builtinStyles[name]
	if !ok {
		return Style{}, fmt.Errorf("%w: unknown style %q", ErrInvalidRequest, name)
	}
	return s, nil
}

// Styles lists the built-in styles in name order.
func Styles() []Style {
	out := make([]Style, 0, len(builtinStyles))
	for _, s := range builtinStyles {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
