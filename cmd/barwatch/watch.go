package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/4thel00z/barwatch/internal"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func NewWatchCmd(commit func() *internal.CommitUseCase) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch memory.json and auto-commit edits",
		Long: `Watch the state directory and commit every change to memory.json, so
manual edits land in the history like the ones made by runs.`,
		Args: cobra.NoArgs,
		RunE: makeWatchRunner(commit),
	}

	cmd.Flags().Duration("debounce", 0, "Debounce window for batching changes (default from config)")
	return cmd
}

func makeWatchRunner(commit func() *internal.CommitUseCase) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		hint := stateHint(cmd)
		debounce, _ := cmd.Flags().GetDuration("debounce")

		scope := internal.NewScopeResolver().Resolve(hint)
		if !scope.Initialized() {
			return fmt.Errorf("%w: %s", internal.ErrNotInitialized, scope.Path)
		}

		if debounce <= 0 {
			cfg, err := internal.LoadConfig(scope)
			if err != nil {
				return err
			}
			debounce = cfg.History.Debounce
		}
		if debounce <= 0 {
			debounce = 500 * time.Millisecond
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		defer watcher.Close()

		// memory.json is replaced by rename, so the directory is watched
		// rather than the file.
		if err := watcher.Add(scope.Path); err != nil {
			return fmt.Errorf("watch %s: %w", scope.Path, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for changes...\n", scope.MemoryPath())

		timer := time.NewTimer(0)
		if !timer.Stop() {
			<-timer.C
		}
		pending := false

		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if shouldIgnoreEvent(event, scope.MemoryPath()) {
					continue
				}
				if !pending {
					timer.Reset(debounce)
					pending = true
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
			case <-timer.C:
				pending = false
				out, commitErr := commit().Execute(cmd.Context(), internal.CommitInput{
					Message: "memory: watch commit", Scope: hint,
				})
				if errors.Is(commitErr, internal.ErrNothingToCommit) {
					continue
				}
				if commitErr != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "commit error: %v\n", commitErr)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", shortHash(out.Hash), out.Message)
			}
		}
	}
}

// shouldIgnoreEvent keeps only writes, creates, removals and renames of the
// memory file itself. Atomic saves show up as a create on memory.json when
// the temp file is renamed over it.
func shouldIgnoreEvent(event fsnotify.Event, memoryPath string) bool {
	if filepath.Clean(event.Name) != filepath.Clean(memoryPath) {
		return true
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0
}
