package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/4thel00z/barwatch/internal"
)

// Executables named barwatch-<name> on PATH run as "barwatch <name>".
const externalPrefix = "barwatch-"

func findExternal(name string) (string, error) {
	binary := externalPrefix + name
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("unknown command %q: %s not found in PATH", name, binary)
	}
	return path, nil
}

func listExternalCommands() []string {
	seen := make(map[string]bool)
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if name := externalName(dir, entry); name != "" {
				seen[name] = true
			}
		}
	}

	commands := make([]string, 0, len(seen))
	for name := range seen {
		commands = append(commands, name)
	}
	slices.Sort(commands)
	return commands
}

func externalName(dir string, entry os.DirEntry) string {
	name := entry.Name()
	if entry.IsDir() || !strings.HasPrefix(name, externalPrefix) {
		return ""
	}

	info, err := os.Stat(filepath.Join(dir, name))
	if err != nil || info.Mode()&0111 == 0 {
		return ""
	}
	return strings.TrimPrefix(name, externalPrefix)
}

func executeExternal(ctx context.Context, name string, args []string, version string) error {
	binaryPath, err := findExternal(name)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, binaryPath, args...)
	cmd.Env = externalEnv(version, internal.NewScopeResolver().Resolve(""))
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

// externalEnv passes the plugin the binary, its version and the state
// directory the built-in commands would use.
func externalEnv(version string, scope internal.Scope) []string {
	bin, _ := os.Executable()

	return append(os.Environ(),
		"BARWATCH_VERSION="+version,
		"BARWATCH_BIN="+bin,
		"BARWATCH_STATE="+scope.Path,
	)
}
