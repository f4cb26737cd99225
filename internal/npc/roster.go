package npc

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/sahilm/fuzzy"
)

const portraitFile = "portrait.txt"

//go:embed roster
var builtinFS embed.FS

// ErrNotFound is returned when an NPC ID is not in the roster.
var ErrNotFound = errors.New("npc not found")

// Roster is an ordered set of NPCs.
type Roster struct {
	npcs []NPC
	byID map[string]int
}

// NewRoster builds a roster from npcs, sorted by ID. Later duplicates win.
func NewRoster(npcs []NPC) *Roster {
	r := &Roster{byID: make(map[string]int, len(npcs))}
	sorted := make([]NPC, len(npcs))
	copy(sorted, npcs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, n := range sorted {
		if i, ok := r.byID[n.ID]; ok {
			r.npcs[i] = n
			continue
		}
		r.byID[n.ID] = len(r.npcs)
		r.npcs = append(r.npcs, n)
	}
	return r
}

// Builtin returns the roster shipped with talkbox.
func Builtin() (*Roster, error) {
	sub, err := fs.Sub(builtinFS, "roster")
	if err != nil {
		return nil, fmt.Errorf("unable to open builtin roster: %w", err)
	}
	return Load(sub)
}

// LoadDir loads a roster from a directory on disk.
func LoadDir(dir string) (*Roster, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to open roster: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("roster %s is not a directory", dir)
	}
	return Load(os.DirFS(dir))
}

// Load reads every subdirectory of fsys that contains a markdown character
// sheet. Subdirectories without one are skipped.
func Load(fsys fs.FS) (*Roster, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("unable to read roster: %w", err)
	}

	var npcs []NPC
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		n, err := loadNPC(fsys, e.Name())
		if err != nil {
			log.Debug("skipping npc", "id", e.Name(), "error", err)
			continue
		}
		npcs = append(npcs, n)
	}
	if len(npcs) == 0 {
		return nil, errors.New("roster has no characters")
	}
	return NewRoster(npcs), nil
}

func loadNPC(fsys fs.FS, id string) (NPC, error) {
	files, err := fs.ReadDir(fsys, id)
	if err != nil {
		return NPC{}, err
	}

	var sheet string
	for _, f := range files {
		if !f.IsDir() && strings.EqualFold(path.Ext(f.Name()), ".md") {
			sheet = path.Join(id, f.Name())
			break
		}
	}
	if sheet == "" {
		return NPC{}, errors.New("no character sheet")
	}

	b, err := fs.ReadFile(fsys, sheet)
	if err != nil {
		return NPC{}, fmt.Errorf("unable to read character sheet: %w", err)
	}

	n := NPC{ID: id, Personality: Parse(b)}
	if p, err := fs.ReadFile(fsys, path.Join(id, portraitFile)); err == nil {
		n.Portrait = strings.TrimRight(string(p), "\n")
	}
	return n, nil
}

// Len returns the number of NPCs.
func (r *Roster) Len() int { return len(r.npcs) }

// List returns the NPCs in ID order.
func (r *Roster) List() []NPC {
	out := make([]NPC, len(r.npcs))
	copy(out, r.npcs)
	return out
}

// Get returns the NPC with the given ID.
func (r *Roster) Get(id string) (NPC, error) {
	i, ok := r.byID[id]
	if !ok {
		return NPC{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.npcs[i], nil
}

// First returns the first NPC in ID order.
func (r *Roster) First() NPC {
	if len(r.npcs) == 0 {
		return NPC{}
	}
	return r.npcs[0]
}

// Next returns the NPC step places after id, wrapping around. Unknown IDs
// start from the first NPC.
func (r *Roster) Next(id string, step int) NPC {
	if len(r.npcs) == 0 {
		return NPC{}
	}
	i, ok := r.byID[id]
	if !ok {
		return r.npcs[0]
	}
	n := len(r.npcs)
	return r.npcs[((i+step)%n+n)%n]
}

// Resolve returns the NPC matching id exactly, or else the best fuzzy match
// on IDs and names.
func (r *Roster) Resolve(query string) (NPC, error) {
	if n, err := r.Get(query); err == nil {
		return n, nil
	}
	matches := r.Find(query)
	if len(matches) == 0 {
		return NPC{}, fmt.Errorf("%w: %s", ErrNotFound, query)
	}
	return matches[0], nil
}

// Find fuzzy-matches query against NPC IDs and names, best match first. An
// empty query returns the whole roster.
func (r *Roster) Find(query string) []NPC {
	if query == "" {
		return r.List()
	}

	targets := make([]string, len(r.npcs))
	for i, n := range r.npcs {
		targets[i] = strings.ToLower(n.ID + " " + n.Name)
	}

	matches := fuzzy.Find(strings.ToLower(query), targets)
	out := make([]NPC, 0, len(matches))
	for _, m := range matches {
		out = append(out, r.npcs[m.Index])
	}
	return out
}
