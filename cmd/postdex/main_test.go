package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/postdex/internal/domain/entity"
	"github.com/kailas-cloud/postdex/internal/repository/content"
	"github.com/kailas-cloud/postdex/internal/version"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// writeBleveConfig seeds a content database and returns a config path that
// points every store into dir.
func writeBleveConfig(t *testing.T, dir string) string {
	t.Helper()
	dsn := filepath.Join(dir, "content.db")
	s, err := content.Open(dsn)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.SaveTenant(ctx, entity.Tenant{
		ID: 1, SiteID: 1, Lang: "en", URL: "https://example.org", Public: true, IndexingEnabled: true,
	}))
	date := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	for _, e := range []*entity.Entity{
		{TenantID: 1, ID: 1, Type: entity.TypePost, Status: entity.StatusPublish,
			Title: "Hello gophers", Content: "<p>Channels and goroutines</p>", Date: date, DateGMT: date},
		{TenantID: 1, ID: 2, Type: entity.TypePost, Status: entity.StatusAutoDraft, Title: "Draft"},
		{TenantID: 1, ID: 3, Type: entity.TypeRevision, Status: entity.StatusInherit, ParentID: 1},
		{TenantID: 1, ID: 4, Type: entity.TypePost, Status: entity.StatusTrash, Title: "Binned", Date: date},
	} {
		require.NoError(t, s.SaveEntity(ctx, e), "save entity %d", e.ID)
	}
	require.NoError(t, s.Close())

	cfg := fmt.Sprintf(`
http:
  port: 8090
content:
  dsn: %s
engine:
  driver: bleve
  bleve_path: %s
reindex:
  workers: 2
  batch_size: 2
  cursor_path: %s
`, dsn, filepath.Join(dir, "posts.bleve"), filepath.Join(dir, "cursors"))
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func TestVersionCmd(t *testing.T) {
	orig := version.Version
	version.Version = "1.2.3"
	defer func() { version.Version = orig }()

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "postdex 1.2.3")
}

func TestSchemaCmd_Print(t *testing.T) {
	path := writeBleveConfig(t, t.TempDir())

	out, err := execute(t, "--env", "test", "--config", path, "schema", "--print")
	require.NoError(t, err)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &body), out)
	assert.Contains(t, body, "mappings")
	assert.Contains(t, body, "settings")
}

func TestSchemaCmd_CurrentBeforeSubmit(t *testing.T) {
	path := writeBleveConfig(t, t.TempDir())

	_, err := execute(t, "--env", "test", "--config", path, "schema", "--current")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no schema submitted for index posts")
}

func TestReindexCmd_Bleve(t *testing.T) {
	dir := t.TempDir()
	path := writeBleveConfig(t, dir)

	out, err := execute(t, "--env", "test", "--config", path, "schema")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Schema posts submitted")

	out, err = execute(t, "--env", "test", "--config", path, "schema", "--current")
	require.NoError(t, err, out)
	var stored map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &stored), out)
	assert.Contains(t, stored, "mappings")

	out, err = execute(t, "--env", "test", "--config", path, "reindex", "--tenant", "1")
	require.NoError(t, err, out)
	// The auto-draft is never enumerated; the trashed post is indexed like any other status.
	assert.Contains(t, out, "tenant 1: ok=2 skipped=1 failed=0")
	assert.FileExists(t, filepath.Join(dir, "cursors", "cursor-1.json"))

	out, err = execute(t, "--env", "test", "--config", path, "sync", "1", "1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "1-p-1\tok")
}

func TestReindexCmd_RequiresTenant(t *testing.T) {
	_, err := execute(t, "reindex")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--tenant")
}

func TestSyncCmd_BadArgs(t *testing.T) {
	for _, args := range [][]string{{"sync", "1"}, {"sync", "x", "2"}, {"sync", "1", "0"}} {
		_, err := execute(t, args...)
		assert.Error(t, err, "%v", args)
	}
}

func TestSchemaOptions(t *testing.T) {
	a := &app{}
	def := a.schemaOptions()
	assert.Equal(t, "posts", def.Name)
	assert.NotEmpty(t, def.Lang)

	a.cfg.Index.Name = "news"
	a.cfg.Index.Lang = "de"
	a.cfg.Index.Shards = 3
	got := a.schemaOptions()
	assert.Equal(t, "news", got.Name)
	assert.Equal(t, "de", got.Lang)
	assert.Equal(t, 3, got.Shards)
}

func TestStatuses(t *testing.T) {
	assert.Nil(t, statuses(nil))
	assert.Equal(t, []entity.Status{entity.StatusDraft, entity.StatusTrash}, statuses([]string{"draft", "trash"}))
}
