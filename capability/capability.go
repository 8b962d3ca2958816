// Package capability enumerates the host GPU API's version and
// extensions so the initialization path can choose between execution
// modes (spec.md §4.11). The render loop itself never consults this
// package once a mode is chosen.
package capability

import (
	"fmt"
	"regexp"
	"strconv"
)

// Version is an OpenGL (or OpenGL ES) version encoded as major*10+minor,
// mirroring the compact encoding used elsewhere in the retrieved
// corpus for the same purpose.
type Version int

const (
	GL20 Version = 20
	GL21 Version = 21
	GL30 Version = 30
	GL31 Version = 31
	GL32 Version = 32
	GL33 Version = 33
	GL41 Version = 41
)

func (v Version) String() string {
	maj, min := v.majorMinor()
	return fmt.Sprintf("%d.%d", maj, min)
}

func (v Version) majorMinor() (int, int) {
	return int(v / 10), int(v % 10)
}

var versionRe = regexp.MustCompile(`^(\d)\.(\d)$`)

// ParseVersion parses a "major.minor" string such as "4.1" into a Version.
func ParseVersion(s string) (Version, error) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("capability: invalid GL version: %q", s)
	}
	maj, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return Version(maj*10 + min), nil
}

// OutputProfile selects the GLSL dialect the wrapper/translator should
// target.
type OutputProfile int

const (
	// ProfileGLSL330 targets desktop OpenGL 3.3 core (and above).
	ProfileGLSL330 OutputProfile = iota
	// ProfileESSL targets OpenGL ES / WebGL-compatible GLSL.
	ProfileESSL
)

// Features is the set of optional capabilities a given version band
// may or may not expose. Extensions is keyed by extension name.
type Features struct {
	ComputeShaders    bool
	IntegerTextures   bool
	SyncObjects       bool
	PlatformDisplay   bool
	TimerQueries      bool
	Extensions        map[string]bool
}

// Registry holds the negotiated version and feature set for one GPU
// context.
type Registry struct {
	version  Version
	isGLES   bool
	features Features
}

// NewRegistry builds a Registry for the given detected version. The
// isGLES flag mirrors the teacher's isGLES() proxy check (no windowing
// context means the headless/ES path).
func NewRegistry(version Version, isGLES bool, extensions map[string]bool) *Registry {
	if extensions == nil {
		extensions = map[string]bool{}
	}
	return &Registry{
		version: version,
		isGLES:  isGLES,
		features: Features{
			ComputeShaders:  version >= GL31,
			IntegerTextures: version >= GL30,
			SyncObjects:     version >= GL32,
			PlatformDisplay: isGLES,
			TimerQueries:    extensions["GL_ARB_timer_query"] || extensions["EXT_disjoint_timer_query"],
			Extensions:      extensions,
		},
	}
}

// BestAvailableVersion returns the negotiated version.
func (r *Registry) BestAvailableVersion() Version { return r.version }

// HasMinVersion reports whether the negotiated version is at least v.
func (r *Registry) HasMinVersion(v Version) bool { return r.version >= v }

// HasExtension reports whether a named extension is present.
func (r *Registry) HasExtension(name string) bool { return r.features.Extensions[name] }

// Features returns the resolved feature flags for the negotiated version.
func (r *Registry) Features() Features { return r.features }

// OutputProfile selects the wrapper's GLSL dialect for this context:
// GLES/WebGL-style hosts get ESSL, desktop hosts get GLSL 330 core.
func (r *Registry) OutputProfile() OutputProfile {
	if r.isGLES {
		return ProfileESSL
	}
	return ProfileGLSL330
}

// SupportsTimerQueries reports whether GPU timer queries are usable;
// when false the adaptive controller must fall back to wall-clock
// frame timing (spec.md §7, TimerUnavailable).
func (r *Registry) SupportsTimerQueries() bool { return r.features.TimerQueries }
