package internal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// LedgerEntry is one row of the post ledger.
type LedgerEntry struct {
	ID       string    `json:"id"`
	RunID    string    `json:"run_id"`
	TweetID  string    `json:"tweet_id,omitempty"`
	Text     string    `json:"text"`
	Phase    string    `json:"phase,omitempty"`
	Mode     string    `json:"mode"`
	DryRun   bool      `json:"dry_run"`
	Image    string    `json:"image,omitempty"`
	PostedAt time.Time `json:"posted_at"`
}

// Ledger records every post, including dry runs, in posts.db.
type Ledger struct {
	db *sql.DB
}

func OpenLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	_, err := l.db.Exec(`
	CREATE TABLE IF NOT EXISTS posts (
		id        TEXT PRIMARY KEY,
		run_id    TEXT NOT NULL,
		tweet_id  TEXT,
		text      TEXT NOT NULL,
		phase     TEXT,
		mode      TEXT NOT NULL,
		dry_run   INTEGER NOT NULL DEFAULT 0,
		image     TEXT,
		posted_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_posts_posted ON posts(posted_at DESC);
	`)
	return err
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record inserts entry, filling in the id and timestamp when unset.
func (l *Ledger) Record(ctx context.Context, entry *LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}
	if entry.PostedAt.IsZero() {
		entry.PostedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO posts (id, run_id, tweet_id, text, phase, mode, dry_run, image, posted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.RunID, entry.TweetID, entry.Text, entry.Phase, entry.Mode,
		entry.DryRun, entry.Image, entry.PostedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record post: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, run_id, COALESCE(tweet_id, ''), text, COALESCE(phase, ''), mode, dry_run, COALESCE(image, ''), posted_at
		 FROM posts ORDER BY posted_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		var postedAt string
		if err := rows.Scan(&e.ID, &e.RunID, &e.TweetID, &e.Text, &e.Phase, &e.Mode, &e.DryRun, &e.Image, &postedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		e.PostedAt, err = time.Parse(time.RFC3339Nano, postedAt)
		if err != nil {
			return nil, fmt.Errorf("parse posted_at: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecentTexts is a convenience for callers that only need the post bodies.
func (l *Ledger) RecentTexts(ctx context.Context, limit int) ([]string, error) {
	entries, err := l.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = strings.TrimSpace(e.Text)
	}
	return texts, nil
}
