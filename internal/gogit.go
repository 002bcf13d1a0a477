package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

const (
	DefaultBranch = "main"
	DefaultAuthor = "barwatch"
	DefaultEmail  = "barwatch@local"
)

// tracked lists the state files that are versioned; the ledger, cache and
// config (which may carry secrets) stay out of history.
var tracked = []string{"memory.json"}

const stateIgnore = `.history/
posts.db*
cache/
config.yaml
`

var ErrNothingToCommit = errors.New("nothing to commit")

var _ HistoryRepository = (*StateRepository)(nil)

// StateRepository versions the state directory with an embedded git store
// so every memory write leaves an auditable commit behind.
type StateRepository struct {
	repo     *git.Repository
	worktree *git.Worktree
	rootPath string
}

func NewStateRepository(scope Scope) (*StateRepository, error) {
	historyPath := scope.HistoryPath()
	if _, err := os.Stat(historyPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, historyPath)
	}

	storage := filesystem.NewStorage(osfs.New(historyPath), cache.NewObjectLRUDefault())
	repo, err := git.Open(storage, osfs.New(scope.Path))
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}

	return &StateRepository{
		repo:     repo,
		worktree: worktree,
		rootPath: scope.Path,
	}, nil
}

// InitStateRepository creates the state directory and its history store
// with an initial commit.
func InitStateRepository(scope Scope) error {
	if err := os.MkdirAll(scope.HistoryPath(), 0755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	storage := filesystem.NewStorage(osfs.New(scope.HistoryPath()), cache.NewObjectLRUDefault())
	repo, err := git.Init(storage, osfs.New(scope.Path))
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}

	cfg, err := repo.Config()
	if err != nil {
		return fmt.Errorf("get config: %w", err)
	}
	cfg.Init.DefaultBranch = DefaultBranch
	if err := repo.SetConfig(cfg); err != nil {
		return fmt.Errorf("set config: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("get worktree: %w", err)
	}

	if err := os.WriteFile(filepath.Join(scope.Path, ".gitignore"), []byte(stateIgnore), 0644); err != nil {
		return fmt.Errorf("write ignore file: %w", err)
	}
	if _, err := worktree.Add(".gitignore"); err != nil {
		return fmt.Errorf("stage ignore file: %w", err)
	}

	_, err = worktree.Commit("init: initialize barwatch state", &git.CommitOptions{
		Author: signature(),
	})
	if err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}

	return nil
}

func (r *StateRepository) Commit(ctx context.Context, message string) (*Commit, error) {
	for _, name := range tracked {
		if _, err := os.Stat(filepath.Join(r.rootPath, name)); err != nil {
			continue
		}
		if _, err := r.worktree.Add(name); err != nil {
			return nil, fmt.Errorf("stage %s: %w", name, err)
		}
	}

	hash, err := r.worktree.Commit(message, &git.CommitOptions{
		Author: signature(),
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		return nil, ErrNothingToCommit
	}
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("get commit: %w", err)
	}

	return toCommit(commit), nil
}

func (r *StateRepository) Log(ctx context.Context, limit int) ([]*Commit, error) {
	iter, err := r.repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("get log: %w", err)
	}
	defer iter.Close()

	var commits []*Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(commits) >= limit {
			return io.EOF
		}
		commits = append(commits, toCommit(c))
		return nil
	})
	if err != nil && err != io.EOF {
		return nil, err
	}

	return commits, nil
}

// Diff compares the working memory record with HEAD when ref is empty,
// otherwise HEAD with ref.
func (r *StateRepository) Diff(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return r.diffWorktreeVsHead()
	}
	return r.diffHeadVsRef(ref)
}

func (r *StateRepository) diffWorktreeVsHead() (string, error) {
	headTree, err := r.headTree()
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	for _, name := range tracked {
		current, readErr := os.ReadFile(filepath.Join(r.rootPath, name))
		if readErr != nil && !os.IsNotExist(readErr) {
			return "", fmt.Errorf("read %s: %w", name, readErr)
		}

		var previous string
		if f, fileErr := headTree.File(name); fileErr == nil {
			previous, err = f.Contents()
			if err != nil {
				return "", fmt.Errorf("read committed %s: %w", name, err)
			}
		}

		if previous == string(current) {
			continue
		}
		fmt.Fprintf(&buf, "--- a/%s\n+++ b/%s\n", name, name)
		buf.WriteString(LineDiff(previous, string(current)))
	}

	return buf.String(), nil
}

func (r *StateRepository) diffHeadVsRef(ref string) (string, error) {
	headTree, err := r.headTree()
	if err != nil {
		return "", err
	}

	resolved, err := r.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return "", fmt.Errorf("resolve ref: %w", err)
	}

	targetCommit, err := r.repo.CommitObject(*resolved)
	if err != nil {
		return "", fmt.Errorf("get target commit: %w", err)
	}

	targetTree, err := targetCommit.Tree()
	if err != nil {
		return "", fmt.Errorf("get target tree: %w", err)
	}

	changes, err := targetTree.Diff(headTree)
	if err != nil {
		return "", fmt.Errorf("diff trees: %w", err)
	}

	patch, err := changes.Patch()
	if err != nil {
		return "", fmt.Errorf("get patch: %w", err)
	}

	return patch.String(), nil
}

func (r *StateRepository) Show(ctx context.Context, ref string) (*Commit, error) {
	resolved, err := r.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, fmt.Errorf("resolve ref: %w", err)
	}

	commit, err := r.repo.CommitObject(*resolved)
	if err != nil {
		return nil, fmt.Errorf("get commit: %w", err)
	}

	return toCommit(commit), nil
}

// Revert restores the tracked state files to ref.
func (r *StateRepository) Revert(ctx context.Context, ref string) error {
	resolved, err := r.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return fmt.Errorf("resolve ref: %w", err)
	}

	if err := r.worktree.Reset(&git.ResetOptions{
		Commit: *resolved,
		Mode:   git.HardReset,
	}); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	return nil
}

func (r *StateRepository) headTree() (*object.Tree, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("get HEAD: %w", err)
	}

	headCommit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("get HEAD commit: %w", err)
	}

	tree, err := headCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("get HEAD tree: %w", err)
	}
	return tree, nil
}

func signature() *object.Signature {
	return &object.Signature{
		Name:  DefaultAuthor,
		Email: DefaultEmail,
		When:  time.Now(),
	}
}

func toCommit(c *object.Commit) *Commit {
	var parents []string
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}

	return &Commit{
		Hash:      c.Hash.String(),
		Message:   strings.TrimSpace(c.Message),
		Author:    c.Author.Name,
		Timestamp: c.Author.When,
		Parents:   parents,
	}
}
