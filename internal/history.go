package internal

import (
	"context"
	"time"
)

type Commit struct {
	Hash      string
	Message   string
	Author    string
	Timestamp time.Time
	Parents   []string
}

// HistoryRepository versions the state directory.
type HistoryRepository interface {
	Commit(ctx context.Context, message string) (*Commit, error)
	Log(ctx context.Context, limit int) ([]*Commit, error)
	Diff(ctx context.Context, ref string) (string, error)
	Show(ctx context.Context, ref string) (*Commit, error)
	Revert(ctx context.Context, ref string) error
}
