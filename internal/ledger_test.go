package internal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := OpenLedger(filepath.Join(t.TempDir(), "state", "posts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedgerRecordAndRecent(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, text := range []string{"first", "second", "third"} {
		require.NoError(t, l.Record(ctx, &LedgerEntry{
			RunID:    "run",
			Text:     text,
			Mode:     ModeBank,
			Phase:    string(PhaseCountdown),
			DryRun:   i == 1,
			PostedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	entries, err := l.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "third", entries[0].Text)
	assert.Equal(t, "second", entries[1].Text)
	assert.True(t, entries[1].DryRun)
	assert.Equal(t, base.Add(2*time.Hour), entries[0].PostedAt)
	assert.NotEmpty(t, entries[0].ID)

	texts, err := l.RecentTexts(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, texts)
}

func TestLedgerFillsDefaults(t *testing.T) {
	l := openTestLedger(t)
	entry := &LedgerEntry{RunID: "r", Text: "hello", Mode: ModeLLM, TweetID: "42"}
	require.NoError(t, l.Record(context.Background(), entry))

	assert.Len(t, entry.ID, 26)
	assert.False(t, entry.PostedAt.IsZero())

	entries, err := l.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "42", entries[0].TweetID)
}

func TestLedgerReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.db")
	l, err := OpenLedger(path)
	require.NoError(t, err)
	require.NoError(t, l.Record(context.Background(), &LedgerEntry{RunID: "r", Text: "kept", Mode: ModeBank}))
	require.NoError(t, l.Close())

	l, err = OpenLedger(path)
	require.NoError(t, err)
	defer l.Close()

	entries, err := l.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Text)
}
