package internal

import (
	"os"
	"path/filepath"
)

type ScopeType string

const (
	ScopeGlobal  ScopeType = "global"
	ScopeProject ScopeType = "project"
	ScopeCustom  ScopeType = "custom"

	StateDirName = ".barwatch"
)

// Scope is a state directory: memory record, config, ledger, memes and the
// git history store all live underneath Path.
type Scope struct {
	Type ScopeType
	Path string
}

func (s Scope) MemoryPath() string {
	return filepath.Join(s.Path, "memory.json")
}

func (s Scope) ConfigPath() string {
	return filepath.Join(s.Path, "config.yaml")
}

func (s Scope) LedgerPath() string {
	return filepath.Join(s.Path, "posts.db")
}

func (s Scope) MemesDir() string {
	return filepath.Join(s.Path, "memes")
}

func (s Scope) CacheDir() string {
	return filepath.Join(s.Path, "cache")
}

// TweetsPath is an optional tweet pool that replaces the built-in one.
func (s Scope) TweetsPath() string {
	return filepath.Join(s.Path, "tweets.yaml")
}

func (s Scope) HistoryPath() string {
	return filepath.Join(s.Path, ".history")
}

type ScopeResolver struct {
	homeDir string
}

func NewScopeResolver() *ScopeResolver {
	home, _ := os.UserHomeDir()
	return &ScopeResolver{homeDir: home}
}

func (r *ScopeResolver) Global() Scope {
	return Scope{
		Type: ScopeGlobal,
		Path: filepath.Join(r.homeDir, StateDirName),
	}
}

func (r *ScopeResolver) Project() (Scope, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return Scope{}, false
	}
	return r.findProjectScope(cwd)
}

func (r *ScopeResolver) findProjectScope(dir string) (Scope, bool) {
	for {
		statePath := filepath.Join(dir, StateDirName)
		info, err := os.Stat(statePath)
		if err == nil && info.IsDir() {
			return Scope{Type: ScopeProject, Path: statePath}, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Scope{}, false
		}
		dir = parent
	}
}

// Resolve picks the state directory for a hint: "global", "project", an
// explicit directory, or "" for the nearest project falling back to global.
func (r *ScopeResolver) Resolve(hint string) Scope {
	switch hint {
	case "global":
		return r.Global()
	case "", "project":
		if scope, ok := r.Project(); ok {
			return scope
		}
		return r.Global()
	default:
		abs, err := filepath.Abs(hint)
		if err != nil {
			abs = hint
		}
		return Scope{Type: ScopeCustom, Path: abs}
	}
}

func (s Scope) Initialized() bool {
	info, err := os.Stat(s.Path)
	return err == nil && info.IsDir()
}
