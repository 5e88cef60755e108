// Package profile derives the storage namespace for the current process.
package profile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Global is the shared profile used outside recognized projects.
const Global = "global"

// EnvVar forces the profile name.
const EnvVar = "MEMORY_ENGINE_PROFILE"

const maxNameLen = 64

// Source records how a profile was chosen.
type Source string

const (
	SourceEnv     Source = "env"
	SourceMarker  Source = "marker"
	SourceDefault Source = "default"
)

// DefaultMarkers are glob patterns that identify a project root.
var DefaultMarkers = []string{
	".git", "go.mod", "package.json", "pyproject.toml", "Cargo.toml", "pom.xml",
	"build.gradle", "*.csproj", "*.sln", "Gemfile", "composer.json", ".memory-engine",
}

// Profile is the resolved namespace. It does not change for the life of the process.
type Profile struct {
	Name   string `json:"name"`
	Source Source `json:"source"`
	Marker string `json:"marker,omitempty"`
	Dir    string `json:"dir,omitempty"`
}

// IsGlobal reports whether this is the shared profile.
func (p Profile) IsGlobal() bool {
	return p.Name == Global
}

// Resolver resolves a Profile from the environment and working directory.
type Resolver struct {
	Markers []string
	Getenv  func(string) string
	Getwd   func() (string, error)
}

// NewResolver returns a resolver over the real process environment.
func NewResolver(markers []string) *Resolver {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	return &Resolver{Markers: markers, Getenv: os.Getenv, Getwd: os.Getwd}
}

// Resolve applies, in order: env override, project marker in the working
// directory, then the global profile.
func (r *Resolver) Resolve() Profile {
	if name := Sanitize(r.Getenv(EnvVar)); name != "" {
		return Profile{Name: name, Source: SourceEnv}
	}

	wd, err := r.Getwd()
	if err == nil {
		if marker, ok := r.findMarker(wd); ok {
			if name := Sanitize(filepath.Base(wd)); name != "" {
				return Profile{Name: name, Source: SourceMarker, Marker: marker, Dir: wd}
			}
		}
	}
	return Profile{Name: Global, Source: SourceDefault, Dir: wd}
}

func (r *Resolver) findMarker(dir string) (string, bool) {
	fsys := os.DirFS(dir)
	for _, pattern := range r.Markers {
		matches, err := doublestar.Glob(fsys, pattern)
		if err == nil && len(matches) > 0 {
			return matches[0], true
		}
	}
	return "", false
}

// Sanitize maps a name onto [a-z0-9_-]: lowercased, other runs collapsed to a
// single '-', trimmed of '-', capped at 64 characters.
func Sanitize(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
			dash = r == '-'
			continue
		}
		if !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > maxNameLen {
		out = strings.TrimRight(out[:maxNameLen], "-")
	}
	return out
}
