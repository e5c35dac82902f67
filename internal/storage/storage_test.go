package storage_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelbrown/turtle/internal/storage"
	"github.com/michaelbrown/turtle/internal/storage/sqlite"
)

func TestTimespanContains(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	ts := &storage.Timespan{Start: start, End: start.Add(time.Hour)}

	assert.True(t, ts.Contains(start))
	assert.True(t, ts.Contains(start.Add(30*time.Minute)))
	assert.True(t, ts.Contains(start.Add(time.Hour)))
	assert.False(t, ts.Contains(start.Add(-time.Second)))
	assert.False(t, ts.Contains(start.Add(time.Hour+time.Second)))

	var unset *storage.Timespan
	assert.False(t, unset.Contains(start))
}

func TestPlaygroundClosed(t *testing.T) {
	now := time.Now()
	var s storage.Settings
	assert.False(t, s.PlaygroundClosed(now))

	past := now.Add(-time.Minute)
	s.PlaygroundCloseTime = &past
	assert.True(t, s.PlaygroundClosed(now))

	future := now.Add(time.Minute)
	s.PlaygroundCloseTime = &future
	assert.False(t, s.PlaygroundClosed(now))
}

func sampleExport() (*storage.Challenge, []storage.Submission) {
	at := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	ch := &storage.Challenge{ID: "c1", Title: "Square", ImageURL: "https://example.com/sq.png"}
	subs := []storage.Submission{
		{Username: "alice", ChallengeID: "c1", Code: "forward(10)\n", SubmittedAt: at, UpdatedAt: at},
		{Username: "bob", ChallengeID: "c1", Code: "rotate(1)", SubmittedAt: at, UpdatedAt: at.Add(time.Hour)},
	}
	return ch, subs
}

func TestExportMarkdown(t *testing.T) {
	ch, subs := sampleExport()
	md := storage.ExportMarkdown(ch, subs)

	assert.True(t, strings.HasPrefix(md, "# Square\n"))
	assert.Contains(t, md, "- **Image:** https://example.com/sq.png")
	assert.Contains(t, md, "- **Submissions:** 2")
	assert.Contains(t, md, "## alice\n\nSubmitted 2026-02-03 10:00:00\n\n```js\nforward(10)\n```")
	assert.Contains(t, md, "updated 2026-02-03 11:00:00")
	assert.Less(t, strings.Index(md, "## alice"), strings.Index(md, "## bob"))
}

func TestExportJSON(t *testing.T) {
	ch, _ := sampleExport()
	data, err := storage.ExportJSON(ch, nil)
	require.NoError(t, err)

	var decoded struct {
		Challenge   storage.Challenge    `json:"challenge"`
		Submissions []storage.Submission `json:"submissions"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Square", decoded.Challenge.Title)
	assert.NotNil(t, decoded.Submissions)
	assert.Empty(t, decoded.Submissions)
}

func TestParseSeedRejectsMissingTitle(t *testing.T) {
	_, err := storage.ParseSeed([]byte("challenges:\n  - image_url: x\n"))
	assert.ErrorContains(t, err, "no title")

	_, err = storage.ParseSeed([]byte("challenges: ["))
	assert.Error(t, err)
}

func TestApplySeedSkipsExisting(t *testing.T) {
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "seed.yaml")
	doc := "challenges:\n  - title: Square\n    image_url: https://example.com/sq.png\n  - title: Star\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	seed, err := storage.LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, seed.Challenges, 2)

	n, err := storage.ApplySeed(ctx, store, seed)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = storage.ApplySeed(ctx, store, seed)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	list, err := store.ListChallenges(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Square", list[0].Title)
	assert.Equal(t, "https://example.com/sq.png", list[0].ImageURL)
	assert.Equal(t, "Star", list[1].Title)
}
