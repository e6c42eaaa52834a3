package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/texture-replacements/trdb/replacement"
	"github.com/ZanzyTHEbar/texture-replacements/trdb/store"
)

type cli struct {
	t      *testing.T
	dir    string
	db     string
	config string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	c := &cli{
		t:      t,
		dir:    dir,
		db:     filepath.Join(dir, "rt64.json"),
		config: filepath.Join(dir, "config.yaml"),
	}
	config := "database:\n  path: rt64.json\n  snapshotDir: snapshots\naudit:\n  packRoot: .\n  workers: 2\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(c.config, []byte(config), 0o644))
	return c
}

func (c *cli) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"--config", c.config}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	code, stdout, stderr := c.run(args...)
	require.Equal(c.t, 0, code, "stderr: %s", stderr)
	return stdout
}

func TestAddGetFix(t *testing.T) {
	c := newCLI(t)

	c.mustRun("add", "--hash", "aabb", "--path", "tex/a.png", "--load", "preload")
	out := c.mustRun("get", "aabb")
	assert.Contains(t, out, `"tex/a.png"`)
	assert.Contains(t, out, `"preload"`)

	// Updating keeps fields that were not given.
	c.mustRun("add", "--hash", "aabb", "--life", "age")
	db, err := store.ReadFile(c.db)
	require.NoError(t, err)
	require.Equal(t, 1, db.Len())
	assert.Equal(t, "tex/a.png", db.Textures[0].Path)
	assert.Equal(t, replacement.LoadPreload, db.Textures[0].Load)
	assert.Equal(t, replacement.LifeAge, db.Textures[0].Life)

	c.mustRun("fix", "aabb", "--hash", "ccdd")
	code, _, stderr := c.run("get", "aabb")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no replacement for aabb")

	out = c.mustRun("get", "0xCCDD")
	assert.Contains(t, out, `"tex/a.png"`)
}

func TestAddValidation(t *testing.T) {
	c := newCLI(t)

	code, _, stderr := c.run("add", "--hash", "aa")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--path")

	code, _, stderr = c.run("add", "--hash", "aa", "--path", "a.png", "--load", "eventually")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown load policy")

	_, err := os.Stat(c.db)
	assert.True(t, os.IsNotExist(err), "failed commands must not write the database")
}

func TestFixMissing(t *testing.T) {
	c := newCLI(t)
	code, _, stderr := c.run("fix", "aa", "--hash", "bb")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no replacement for aa")

	_, err := os.Stat(c.db)
	assert.True(t, os.IsNotExist(err))
}

func TestFixInvalidPolicyLeavesDatabase(t *testing.T) {
	c := newCLI(t)
	c.mustRun("add", "--hash", "aa", "--path", "a.png")

	code, _, stderr := c.run("fix", "aa", "--hash", "bb", "--life", "forever")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown life policy")

	db, err := store.ReadFile(c.db)
	require.NoError(t, err)
	assert.Equal(t, "a.png", db.GetReplacement("aa").Path)
	assert.True(t, db.GetReplacement("bb").IsEmpty())
}

func TestList(t *testing.T) {
	c := newCLI(t)
	c.mustRun("add", "--hash", "01", "--path", "mario/hat.png", "--load", "preload")
	c.mustRun("add", "--hash", "02", "--path", "mario/shoe.png")
	c.mustRun("add", "--hash", "03", "--path", "luigi/hat.png", "--load", "preload")

	lines := strings.Split(strings.TrimSpace(c.mustRun("list")), "\n")
	assert.Len(t, lines, 4)

	out := c.mustRun("list", "--prefix", "mario/")
	assert.Contains(t, out, "mario/hat.png")
	assert.Contains(t, out, "mario/shoe.png")
	assert.NotContains(t, out, "luigi")

	out = c.mustRun("list", "--load", "preload")
	assert.Contains(t, out, "mario/hat.png")
	assert.Contains(t, out, "luigi/hat.png")
	assert.NotContains(t, out, "shoe")

	out = c.mustRun("list", "--path", "mario/shoe.png")
	assert.Contains(t, out, "mario/shoe.png")
	assert.NotContains(t, out, "hat")

	out = c.mustRun("list", "--path", "mario/missing.png")
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1, "only the header")

	out = c.mustRun("list", "--prefix", "mario/", "--load", "preload")
	assert.Contains(t, out, "mario/hat.png")
	assert.NotContains(t, out, "shoe")
	assert.NotContains(t, out, "luigi")
}

func TestAudit(t *testing.T) {
	c := newCLI(t)
	require.NoError(t, os.WriteFile(filepath.Join(c.dir, "a.png"), []byte("png"), 0o644))

	c.mustRun("add", "--hash", "aa", "--path", "a.png")
	out := c.mustRun("audit")
	assert.Contains(t, out, "1 textures checked (1 indexed)")

	c.mustRun("add", "--hash", "bb", "--path", "gone.png")
	code, out, _ := c.run("audit")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "missing file")
	assert.Contains(t, out, "gone.png")

	out = c.mustRun("audit", "--skip-files")
	assert.NotContains(t, out, "missing file")
}

func TestHash(t *testing.T) {
	c := newCLI(t)
	assert.Equal(t, "00000000000000ff\n", c.mustRun("hash", "255"))
	assert.Equal(t, "deadbeef\n", c.mustRun("hash", "--bits", "32", "0xDEADBEEF"))

	code, _, _ := c.run("hash", "--bits", "32", "0x1DEADBEEF")
	assert.Equal(t, 1, code)
	code, _, _ = c.run("hash", "--bits", "16", "1")
	assert.Equal(t, 1, code)
}

func TestSnapshotRestore(t *testing.T) {
	c := newCLI(t)
	c.mustRun("add", "--hash", "aa", "--path", "a.png")

	id := strings.TrimSpace(c.mustRun("snapshot"))
	require.NotEmpty(t, id)

	out := c.mustRun("snapshots")
	assert.Contains(t, out, id)

	c.mustRun("add", "--hash", "bb", "--path", "b.png")
	db, err := store.ReadFile(c.db)
	require.NoError(t, err)
	require.Equal(t, 2, db.Len())

	c.mustRun("restore", id)
	db, err = store.ReadFile(c.db)
	require.NoError(t, err)
	assert.Equal(t, 1, db.Len())
	assert.Equal(t, "a.png", db.GetReplacement("aa").Path)

	code, _, _ := c.run("restore", "6f1c1a52-7d9e-4b8e-9b43-5b8f2c1d0e11")
	assert.Equal(t, 1, code)
	code, _, _ = c.run("restore", "not-a-uuid")
	assert.Equal(t, 1, code)

	c.mustRun("snapshot-delete", id)
	assert.NotContains(t, c.mustRun("snapshots"), id)
	code, _, stderr := c.run("snapshot-delete", id)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, id)
}

func TestUsage(t *testing.T) {
	c := newCLI(t)

	code, _, stderr := c.run()
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Commands:")

	code, _, stderr = c.run("frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "frobnicate"`)

	code, _, _ = c.run("get", "--help")
	assert.Equal(t, 0, code)
}

func TestDatabaseFlagOverridesConfig(t *testing.T) {
	c := newCLI(t)
	other := filepath.Join(c.dir, "other.json")

	c.mustRun("--db", other, "add", "--hash", "aa", "--path", "a.png")

	_, err := os.Stat(c.db)
	assert.True(t, os.IsNotExist(err))
	db, err := store.ReadFile(other)
	require.NoError(t, err)
	assert.Equal(t, 1, db.Len())
}
