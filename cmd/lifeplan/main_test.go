package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/lifeplan/internal/app"
	"github.com/nhle/lifeplan/internal/credential"
	"github.com/nhle/lifeplan/internal/mirror"
	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/store"
	"github.com/nhle/lifeplan/internal/testutil"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

type harness struct {
	t    *testing.T
	dir  string
	opts app.Options
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := testutil.NewClock(t0)
	ring := keyring.NewArrayKeyring(nil)
	return &harness{
		t:   t,
		dir: t.TempDir(),
		opts: app.Options{
			Logger:      testutil.Logger(),
			Now:         clock.Now,
			Mirror:      mirror.NewMemory(clock.Now),
			Credentials: credential.Store{Open: func() (keyring.Keyring, error) { return ring, nil }},
		},
	}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	root := newRootCmd(h.opts)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(append([]string{
		"--config", filepath.Join(h.dir, "config.yaml"),
		"--db", filepath.Join(h.dir, "lifeplan.db"),
	}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, out)
	return out
}

func (h *harness) runJSON(v any, args ...string) {
	h.t.Helper()
	out := h.mustRun(append([]string{"--json"}, args...)...)
	require.NoError(h.t, json.Unmarshal([]byte(out), v), out)
}

func TestWorkspaceProjectAndGenerate(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("workspace", "init", "Life", "--timezone", "UTC")
	assert.Contains(t, out, `Created workspace "Life"`)
	assert.Contains(t, out, `"inbox"`)

	h.mustRun("project", "create", "home", "Home", "Sweet", "Home")
	var projects []map[string]any
	h.runJSON(&projects, "project", "list")
	require.Len(t, projects, 2)

	h.mustRun("recurring-task", "create", "Water", "the", "plants",
		"--project", "home", "--period", "weekly", "--due-at-day", "3")

	out = h.mustRun("generate")
	assert.Contains(t, out, "created 1, updated 0, skipped 0")
	assert.Contains(t, out, "Water the plants 24:W10")

	var res map[string]int
	h.runJSON(&res, "generate")
	assert.Equal(t, 1, res["skipped"])

	var tasks []map[string]any
	h.runJSON(&tasks, "inbox-task", "list")
	require.Len(t, tasks, 1)
	assert.Equal(t, "Water the plants 24:W10", tasks[0]["name"])
	assert.Equal(t, "2024-03-06T00:00:00Z", tasks[0]["due_date"])

	refID := tasks[0]["ref_id"].(string)
	out = h.mustRun("inbox-task", "status", refID, "done")
	assert.Contains(t, out, "is now done")
}

func TestSyncReportAndMaintenance(t *testing.T) {
	h := newHarness(t)
	h.mustRun("workspace", "init", "Life")
	h.mustRun("inbox-task", "create", "Call", "the", "bank", "--due", "2024-03-08")

	var stats map[string]map[string]int
	h.runJSON(&stats, "sync", "--collection", "inbox_tasks")
	assert.Equal(t, 1, stats["inbox_tasks"]["external_created"])

	var r map[string]any
	h.runJSON(&r, "report", "--period", "weekly", "--breakdown", "global")
	assert.Equal(t, "weekly", r["period"])
	global := r["global"].(map[string]any)["inbox_tasks"].(map[string]any)
	assert.Equal(t, float64(1), global["created"].(map[string]any)["total"])

	out := h.mustRun("report", "--period", "monthly")
	assert.Contains(t, out, "monthly report")

	out = h.mustRun("verify")
	assert.Contains(t, out, "consistent")

	var gc app.GCResult
	h.runJSON(&gc, "gc", "--grace-days", "0")
	assert.Equal(t, app.GCResult{}, gc)

	h.mustRun("vacation", "create", "Beach", "--start", "2024-07-01", "--end", "2024-07-14")
	var vacations []map[string]any
	h.runJSON(&vacations, "vacation", "list")
	require.Len(t, vacations, 1)
	h.mustRun("remove", "vacation", vacations[0]["ref_id"].(string))
	h.runJSON(&vacations, "vacation", "list")
	assert.Empty(t, vacations)
}

func TestCommandErrorsMapToExitCodes(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("inbox-task", "list")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, exitInvalid, exitCode(err))

	h.mustRun("workspace", "init", "Life", "--features", "none")
	_, err = h.run("metric", "create", "weight", "Weight")
	assert.ErrorIs(t, err, app.ErrFeatureDisabled)

	_, err = h.run("report", "--period", "weekly", "--breakdown-period", "monthly")
	assert.Error(t, err)

	_, err = h.run("workspace", "init", "Work", "--features", "telepathy")
	assert.ErrorIs(t, err, model.ErrUnknownFilter)

	_, err = h.run("sync", "--preference", "prefer_nobody")
	assert.ErrorIs(t, err, model.ErrUnknownFilter)
}

func TestExitCode(t *testing.T) {
	wrap := func(err error) error { return fmt.Errorf("context: %w", err) }

	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitInvalid, exitCode(wrap(model.ErrInvalidName)))
	assert.Equal(t, exitConflict, exitCode(wrap(store.ErrConcurrencyConflict)))
	assert.Equal(t, exitUnavailable, exitCode(wrap(mirror.ErrUnavailable)))
	assert.Equal(t, exitUnavailable, exitCode(wrap(&mirror.AuthError{})))
	assert.Equal(t, exitCorrupt, exitCode(wrap(store.ErrCorruptEventStream)))
}

func TestCredentialCommands(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("credential", "set", "s3cret")
	assert.Contains(t, out, `"mirror-token"`)
	token, err := h.opts.Credentials.Get("mirror-token")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", token)

	h.mustRun("credential", "delete")
	_, err = h.opts.Credentials.Get("mirror-token")
	assert.Error(t, err)

	_, err = h.run("credential", "set")
	assert.Error(t, err)
}
