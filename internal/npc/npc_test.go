package npc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Personality
	}{
		{
			name: "full front matter",
			content: "---\nname: Bramble\npersonality: Cheerful\ntraits: [\"curious\", \"kind\"]\n---\n" +
				"Keeps the store.\n",
			want: Personality{
				Name:        "Bramble",
				Personality: "Cheerful",
				Traits:      []string{"curious", "kind"},
				Description: "Keeps the store.",
			},
		},
		{
			name:    "quoted values",
			content: "---\nname: \"Old Harrow\"\npersonality: 'Gruff'\n---\nGuard.",
			want: Personality{
				Name:        "Old Harrow",
				Personality: "Gruff",
				Traits:      []string{},
				Description: "Guard.",
			},
		},
		{
			name:    "traits as a string are ignored",
			content: "---\nname: Quill\ntraits: cryptic\n---\nArchivist.",
			want: Personality{
				Name:        "Quill",
				Personality: "Neutral",
				Traits:      []string{},
				Description: "Archivist.",
			},
		},
		{
			name:    "no front matter",
			content: "  Just a description.  \n",
			want: Personality{
				Name:        "Unknown",
				Personality: "Neutral",
				Traits:      []string{},
				Description: "Just a description.",
			},
		},
		{
			name:    "broken yaml keeps description",
			content: "---\nname: [unterminated\n---\nBody.",
			want: Personality{
				Name:        "Unknown",
				Personality: "Neutral",
				Traits:      []string{},
				Description: "Body.",
			},
		},
		{
			name:    "windows line endings",
			content: "---\r\nname: Crlf\r\n---\r\nBody.",
			want: Personality{
				Name:        "Crlf",
				Personality: "Neutral",
				Traits:      []string{},
				Description: "Body.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse([]byte(tt.content))
			if got.Name != tt.want.Name {
				t.Errorf("Name = %q, want %q", got.Name, tt.want.Name)
			}
			if got.Personality != tt.want.Personality {
				t.Errorf("Personality = %q, want %q", got.Personality, tt.want.Personality)
			}
			if strings.Join(got.Traits, "|") != strings.Join(tt.want.Traits, "|") {
				t.Errorf("Traits = %v, want %v", got.Traits, tt.want.Traits)
			}
			if got.Description != tt.want.Description {
				t.Errorf("Description = %q, want %q", got.Description, tt.want.Description)
			}
		})
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		npc  NPC
		want string
	}{
		{NPC{ID: "npc_1", Personality: Personality{Name: "Bramble"}}, "Bramble"},
		{NPC{ID: "npc_1", Personality: Personality{Name: "Unknown"}}, "Npc 1"},
		{NPC{ID: "old_harrow"}, "Old Harrow"},
		{NPC{}, "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.npc.Title(); got != tt.want {
			t.Errorf("Title() = %q, want %q", got, tt.want)
		}
	}
}

func TestBuiltin(t *testing.T) {
	r, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin() error: %v", err)
	}
	if r.Len() < 3 {
		t.Fatalf("builtin roster has %d npcs, want at least 3", r.Len())
	}

	n, err := r.Get("npc_1")
	if err != nil {
		t.Fatalf("Get(npc_1) error: %v", err)
	}
	if n.Name != "Bramble" {
		t.Errorf("Name = %q, want Bramble", n.Name)
	}
	if n.Portrait == "" {
		t.Error("builtin npc should have a portrait")
	}
}

func writeNPC(t *testing.T, dir, id, sheet, portrait string) {
	t.Helper()
	p := filepath.Join(dir, id)
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatal(err)
	}
	if sheet != "" {
		if err := os.WriteFile(filepath.Join(p, "sheet.md"), []byte(sheet), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if portrait != "" {
		if err := os.WriteFile(filepath.Join(p, portraitFile), []byte(portrait), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeNPC(t, dir, "npc_2", "---\nname: Beta\n---\nSecond.", "")
	writeNPC(t, dir, "npc_1", "---\nname: Alpha\n---\nFirst.", "(o_o)\n")
	writeNPC(t, dir, "empty", "", "")
	writeNPC(t, dir, ".hidden", "---\nname: Hidden\n---\n", "")

	r, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error: %v", err)
	}

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("got %d npcs, want 2", len(list))
	}
	if list[0].ID != "npc_1" || list[1].ID != "npc_2" {
		t.Errorf("unexpected order: %s, %s", list[0].ID, list[1].ID)
	}
	if list[0].Portrait != "(o_o)" {
		t.Errorf("Portrait = %q, want %q", list[0].Portrait, "(o_o)")
	}

	if _, err := r.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestLoadDirErrors(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for a missing directory")
	}
	if _, err := LoadDir(t.TempDir()); err == nil {
		t.Error("expected error for an empty roster")
	}

	file := filepath.Join(t.TempDir(), "file.md")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDir(file); err == nil {
		t.Error("expected error for a file path")
	}
}

func TestRosterNext(t *testing.T) {
	r := NewRoster([]NPC{{ID: "c"}, {ID: "a"}, {ID: "b"}})

	tests := []struct {
		from string
		step int
		want string
	}{
		{"a", 1, "b"},
		{"c", 1, "a"},
		{"a", -1, "c"},
		{"b", 4, "c"},
		{"zzz", 1, "a"},
	}
	for _, tt := range tests {
		if got := r.Next(tt.from, tt.step).ID; got != tt.want {
			t.Errorf("Next(%q, %d) = %q, want %q", tt.from, tt.step, got, tt.want)
		}
	}

	if got := NewRoster(nil).Next("a", 1).ID; got != "" {
		t.Errorf("empty roster Next = %q, want empty", got)
	}
}

func TestRosterDuplicates(t *testing.T) {
	r := NewRoster([]NPC{
		{ID: "a", Personality: Personality{Name: "First"}},
		{ID: "a", Personality: Personality{Name: "Second"}},
	})
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	if n, _ := r.Get("a"); n.Name != "Second" {
		t.Errorf("Name = %q, want Second", n.Name)
	}
}

func TestRosterFindAndResolve(t *testing.T) {
	r := NewRoster([]NPC{
		{ID: "npc_1", Personality: Personality{Name: "Bramble"}},
		{ID: "npc_2", Personality: Personality{Name: "Old Harrow"}},
		{ID: "npc_3", Personality: Personality{Name: "Quill"}},
	})

	if got := r.Find(""); len(got) != 3 {
		t.Errorf("Find(\"\") returned %d, want 3", len(got))
	}

	got := r.Find("harrow")
	if len(got) == 0 || got[0].ID != "npc_2" {
		t.Errorf("Find(harrow) = %v, want npc_2 first", got)
	}

	n, err := r.Resolve("npc_3")
	if err != nil || n.Name != "Quill" {
		t.Errorf("Resolve(npc_3) = %v, %v", n, err)
	}
	n, err = r.Resolve("brmbl")
	if err != nil || n.ID != "npc_1" {
		t.Errorf("Resolve(brmbl) = %v, %v", n, err)
	}
	if _, err := r.Resolve("xyzzy"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(xyzzy) error = %v, want ErrNotFound", err)
	}
}

func TestSystemPrompt(t *testing.T) {
	p := Personality{
		Name:        "Bramble",
		Personality: "Cheerful",
		Traits:      []string{"curious", "kind"},
		Description: "Keeps the store.",
	}
	got := SystemPrompt(p)

	for _, want := range []string{"You are Bramble", "Cheerful", "curious, kind", "Keeps the store."} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "{name}") || strings.Contains(got, "{traits}") {
		t.Errorf("prompt has unreplaced placeholders:\n%s", got)
	}
}

func TestRenderPromptEmptyTraits(t *testing.T) {
	got := RenderPrompt("[{traits}]", Personality{})
	if got != "[]" {
		t.Errorf("RenderPrompt = %q, want %q", got, "[]")
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	writeNPC(t, dir, "npc_1", "---\nname: Alpha\n---\n", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Roster, 4)
	errc := make(chan error, 1)
	go func() {
		errc <- Watch(ctx, dir, func(r *Roster, err error) {
			if err == nil {
				reloaded <- r
			}
		})
	}()

	// Give the watcher a moment to register.
	time.Sleep(100 * time.Millisecond)
	writeNPC(t, dir, "npc_1", "---\nname: Renamed\n---\n", "")

	select {
	case r := <-reloaded:
		n, err := r.Get("npc_1")
		if err != nil {
			t.Fatal(err)
		}
		if n.Name != "Renamed" {
			t.Errorf("Name = %q, want Renamed", n.Name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("roster was not reloaded")
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Watch did not return after cancel")
	}
}
