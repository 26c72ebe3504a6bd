package script

import (
	"embed"
	"path"
	"sort"
	"strings"
)

//go:embed examples/*.go
var exampleFS embed.FS

// Examples returns the bundled example scripts keyed by name
// ("house", "chessboard", ...).
func Examples() map[string]string {
	out := map[string]string{}
	entries, _ := exampleFS.ReadDir("examples")
	for _, e := range entries {
		b, err := exampleFS.ReadFile(path.Join("examples", e.Name()))
		if err != nil {
			continue
		}
		out[strings.TrimSuffix(e.Name(), ".go")] = stripBuildTag(string(b))
	}
	return out
}

func ExampleNames() []string {
	ex := Examples()
	names := make([]string, 0, len(ex))
	for n := range ex {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultScript is what a fresh editor shows.
func DefaultScript() string { return Examples()["house"] }

func stripBuildTag(src string) string {
	if strings.HasPrefix(src, "//go:build") {
		if i := strings.IndexByte(src, '\n'); i >= 0 {
			return strings.TrimLeft(src[i+1:], "\n")
		}
	}
	return src
}
