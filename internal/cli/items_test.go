package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NSSimpleApps/TestToDoList/internal/config"
	"github.com/NSSimpleApps/TestToDoList/internal/store"
	"github.com/NSSimpleApps/TestToDoList/internal/task"
	"github.com/NSSimpleApps/TestToDoList/internal/todoerr"
)

const samplePayload = `{"todos":[
	{"id":1,"todo":"Buy milk","completed":false,"userId":3},
	{"id":2,"todo":"Café with Ana","completed":true,"userId":5},
	{"id":3,"todo":"Read a book","completed":false,"userId":9}
]}`

type cliFixture struct {
	configPath string
	storePath  string
	fetches    *atomic.Int32
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	t.Setenv(config.EnvStorePath, "")
	t.Setenv(config.EnvRemoteURL, "")

	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, samplePayload)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	storePath := filepath.Join(dir, "data", "todo_list.sqlite")
	configPath := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf(`[store]
path = %q
prefs_path = %q

[remote]
url = %q
max_tries = 1
timeout_seconds = 5
`, storePath, filepath.Join(dir, "data", "prefs.yaml"), srv.URL)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	return &cliFixture{configPath: configPath, storePath: storePath, fetches: &fetches}
}

// run executes one CLI invocation and returns its stdout.
func (f *cliFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--config", f.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func (f *cliFixture) runJSON(t *testing.T, data any, args ...string) {
	t.Helper()
	out, err := f.run(t, append([]string{"--format", "json"}, args...)...)
	require.NoError(t, err, out)

	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
}

func recordTitles(records []store.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Title)
	}
	return out
}

func TestList_FirstRunFetchesThenReadsStore(t *testing.T) {
	f := newCLIFixture(t)

	var first []store.Record
	f.runJSON(t, &first, "list")
	assert.Equal(t, []string{"Buy milk", "Café with Ana", "Read a book"}, recordTitles(first))
	assert.Equal(t, int32(1), f.fetches.Load())

	var second []store.Record
	f.runJSON(t, &second, "list")
	assert.Equal(t, recordTitles(first), recordTitles(second))
	assert.Equal(t, int32(1), f.fetches.Load(), "second run reads the store")

	var found []store.Record
	f.runJSON(t, &found, "list", "--search", "CAFE")
	assert.Equal(t, []string{"Café with Ana"}, recordTitles(found))
}

func TestList_TextOutput(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "Café with Ana")
	assert.Regexp(t, `\[x\]\s+Café with Ana`, out)
}

func TestAddUpdateRemove(t *testing.T) {
	f := newCLIFixture(t)
	f.runJSON(t, nil, "list")

	var created store.Record
	f.runJSON(t, &created, "add", "Walk the dog", "--description", "before nine")
	require.NotEmpty(t, created.ID)
	require.NotNil(t, created.Description)
	assert.Equal(t, "before nine", *created.Description)

	var updated store.Record
	f.runJSON(t, &updated, "update", created.ID, "--completed")
	assert.Equal(t, "Walk the dog", updated.Title, "unchanged flags keep their value")
	assert.Equal(t, created.Description, updated.Description)
	assert.True(t, updated.Completed)

	var cleared store.Record
	f.runJSON(t, &cleared, "update", created.ID, "--description", "")
	assert.Nil(t, cleared.Description, "empty description clears it")
	assert.True(t, cleared.Completed)

	var all []store.Record
	f.runJSON(t, &all, "list")
	require.Len(t, all, 4)
	assert.Equal(t, "Walk the dog", all[0].Title, "newest first")

	var deleted, again map[string]int
	f.runJSON(t, &deleted, "rm", created.ID)
	assert.Equal(t, 1, deleted["deleted"])
	f.runJSON(t, &again, "rm", created.ID)
	assert.Equal(t, 0, again["deleted"])
}

func TestUpdate_MissingItem(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, "update", "nope", "--title", "x")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))
	assert.Equal(t, "Error [not_found]: Item not found.\n", out)
}

func TestAdd_BlankTitle(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, "--format", "json", "add", "   ")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid", resp.Error.Kind)
}

func TestRefresh_ReplacesLocalChanges(t *testing.T) {
	f := newCLIFixture(t)
	f.runJSON(t, nil, "list")
	f.runJSON(t, nil, "add", "local only")

	var refreshed []store.Record
	f.runJSON(t, &refreshed, "refresh")
	assert.Len(t, refreshed, 3)
	assert.NotContains(t, recordTitles(refreshed), "local only")
	assert.Equal(t, int32(2), f.fetches.Load())
}

func TestBadConfigIsCommandError(t *testing.T) {
	f := newCLIFixture(t)
	require.NoError(t, os.WriteFile(f.configPath, []byte("[store]\nunknown_key = 1\n"), 0o644))

	out, err := f.run(t, "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "failed to load config")
}

func TestAwait_CancelledTaskPrintsNothing(t *testing.T) {
	buf := &bytes.Buffer{}
	e := &env{
		logger: slog.New(slog.DiscardHandler),
		out:    &OutputFormatter{Format: "text", Writer: buf},
	}
	tk := task.New[int]("cancelled", nil, nil)
	tk.Cancel()

	_, err := await(context.Background(), e, tk)
	require.Error(t, err)
	assert.True(t, IsReported(err), "main must not print it either")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Empty(t, buf.String())
}

func TestAwait_FailureIsReported(t *testing.T) {
	buf := &bytes.Buffer{}
	e := &env{
		logger: slog.New(slog.DiscardHandler),
		out:    &OutputFormatter{Format: "text", Writer: buf},
	}
	tk := task.New[int]("failing", nil, nil)
	tk.Fail(todoerr.NotFound("Item not found."))

	_, err := await(context.Background(), e, tk)
	require.Error(t, err)
	assert.Equal(t, "Error [not_found]: Item not found.\n", buf.String())
}
