// Package audio defines the audio channel interface the driver plays
// samples through, plus the players that ship with bounce.
package audio

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Player plays a sample file on a channel.
type Player interface {
	Play(channel int, path string, pitch, volume float64) error
}

// Def describes a named player backend.
type Def struct {
	Name  string
	Usage string
	New   func(log zerolog.Logger) Player
}

// Registry holds registered player backends.
type Registry struct {
	defs map[string]*Def
}

// NewRegistry creates a new empty player registry.
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]*Def),
	}
}

// Register adds a backend to the registry.
func (r *Registry) Register(def Def) {
	r.defs[def.Name] = &def
}

// Get retrieves a backend by name.
func (r *Registry) Get(name string) *Def {
	return r.defs[name]
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New builds the player registered as name.
func (r *Registry) New(name string, log zerolog.Logger) (Player, error) {
	def := r.Get(name)
	if def == nil {
		return nil, fmt.Errorf("unknown audio backend %q", name)
	}
	return def.New(log), nil
}

// RegisterDefaults adds all built-in backends.
func RegisterDefaults(r *Registry) {
	r.Register(Def{
		Name:  "log",
		Usage: "log every sample played",
		New:   func(log zerolog.Logger) Player { return &LogPlayer{Log: log} },
	})
	r.Register(Def{
		Name:  "none",
		Usage: "discard audio",
		New:   func(zerolog.Logger) Player { return Discard{} },
	})
}

// LogPlayer logs each play request at info level.
type LogPlayer struct {
	Log zerolog.Logger
}

func (p *LogPlayer) Play(channel int, path string, pitch, volume float64) error {
	p.Log.Info().
		Int("channel", channel).
		Str("sample", path).
		Float64("pitch", pitch).
		Float64("volume", volume).
		Msg("play")
	return nil
}

// Discard drops every play request.
type Discard struct{}

func (Discard) Play(int, string, float64, float64) error { return nil }

// Played is one recorded play request.
type Played struct {
	Channel int
	Path    string
	Pitch   float64
	Volume  float64
}

// Recorder keeps every play request in order. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	played []Played
	// Err, when set, is returned from every Play after recording.
	Err error
}

func (r *Recorder) Play(channel int, path string, pitch, volume float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.played = append(r.played, Played{Channel: channel, Path: path, Pitch: pitch, Volume: volume})
	return r.Err
}

// Played returns a copy of the recorded requests.
func (r *Recorder) Played() []Played {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Played, len(r.played))
	copy(out, r.played)
	return out
}

// Paths returns the recorded sample paths in order.
func (r *Recorder) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.played))
	for i, p := range r.played {
		out[i] = p.Path
	}
	return out
}
