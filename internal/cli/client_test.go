package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/bebetter/internal/app"
	"github.com/roach88/bebetter/internal/server"
	"github.com/roach88/bebetter/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// writeClientConfig points the client at apiBase with sqlite storage in a
// fresh directory.
func writeClientConfig(t *testing.T, apiBase string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bebetter.yaml")
	cfg := fmt.Sprintf("client:\n  api_base: %s\n  data_dir: %s\n  storage: sqlite\n  max_retries: 1\n",
		apiBase, filepath.Join(dir, "data"))
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "server.db"), store.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	ts := httptest.NewServer(server.New(st, server.Options{LoginRate: 100, LoginBurst: 100}).Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = st.Close()
	})
	return ts
}

// execCLI runs the root command with --config and returns stdout.
func execCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func decodeStatus(t *testing.T, out string) app.Status {
	t.Helper()
	var resp struct {
		Status string     `json:"status"`
		Data   app.Status `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func decodeError(t *testing.T, out string) CLIError {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	return *resp.Error
}

func TestClientCommands_Offline(t *testing.T) {
	cfg := writeClientConfig(t, "http://127.0.0.1:1")

	out, err := execCLI(t, cfg, "--format", "json", "status")
	require.NoError(t, err)
	st := decodeStatus(t, out)
	assert.Equal(t, 0, st.XP)
	assert.Equal(t, 50, st.Coins)
	assert.Equal(t, 1, st.Level)
	assert.False(t, st.SignedIn)

	_, err = execCLI(t, cfg, "add", "task-exercise")
	require.NoError(t, err)
	_, err = execCLI(t, cfg, "toggle", "task-exercise")
	require.NoError(t, err)
	_, err = execCLI(t, cfg, "toggle", "task-exercise")
	require.NoError(t, err)

	out, err = execCLI(t, cfg, "--format", "json", "status")
	require.NoError(t, err)
	st = decodeStatus(t, out)
	assert.Equal(t, 20, st.XP)
	assert.Equal(t, 60, st.Coins)
	assert.Equal(t, 0, st.Sync.Sent)

	out, err = execCLI(t, cfg, "--format", "json", "buy", "hat", "--price", "100")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, ErrCodeFunds, decodeError(t, out).Code)

	out, err = execCLI(t, cfg, "--format", "json", "buy", "hat", "--price", "20")
	require.NoError(t, err, out)

	out, err = execCLI(t, cfg, "--format", "json", "status")
	require.NoError(t, err)
	st = decodeStatus(t, out)
	assert.Equal(t, 40, st.Coins)
	assert.Equal(t, map[string]int{"hat": 1}, st.ItemsOwned)
}

func TestClientCommands_TaskErrors(t *testing.T) {
	cfg := writeClientConfig(t, "http://127.0.0.1:1")

	out, err := execCLI(t, cfg, "--format", "json", "add", "task-juggling")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ErrCodeUnknownTask, decodeError(t, out).Code)

	_, err = execCLI(t, cfg, "add", "task-sleep")
	require.NoError(t, err)
	out, err = execCLI(t, cfg, "--format", "json", "add", "task-sleep")
	require.Error(t, err)
	assert.Equal(t, ErrCodeTaskPool, decodeError(t, out).Code)

	out, err = execCLI(t, cfg, "--format", "json", "sync")
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotSignedIn, decodeError(t, out).Code)
}

func TestClientCommands_SignedInSync(t *testing.T) {
	ts := startTestServer(t)
	cfg := writeClientConfig(t, ts.URL)

	_, err := execCLI(t, cfg, "register", "alice", "--password", "pw", "--email", "alice@example.com")
	require.NoError(t, err)

	out, err := execCLI(t, cfg, "--format", "json", "register", "alice", "--password", "pw")
	require.Error(t, err)
	assert.Equal(t, ErrCodeRemote, decodeError(t, out).Code)

	out, err = execCLI(t, cfg, "--format", "json", "login", "alice", "--password", "wrong")
	require.Error(t, err)
	assert.Equal(t, ErrCodeAuth, decodeError(t, out).Code)

	// Login pulls the server totals over the local defaults.
	out, err = execCLI(t, cfg, "--format", "json", "login", "alice", "--password", "pw")
	require.NoError(t, err, out)
	st := decodeStatus(t, out)
	assert.True(t, st.SignedIn)
	assert.Equal(t, 0, st.XP)
	assert.Equal(t, 0, st.Coins)

	_, err = execCLI(t, cfg, "toggle", "task-exercise")
	require.NoError(t, err)

	out, err = execCLI(t, cfg, "--format", "json", "sync")
	require.NoError(t, err, out)
	st = decodeStatus(t, out)
	assert.Equal(t, 20, st.XP)
	assert.Equal(t, 10, st.Coins)

	_, err = execCLI(t, cfg, "logout")
	require.NoError(t, err)

	out, err = execCLI(t, cfg, "--format", "json", "status")
	require.NoError(t, err)
	st = decodeStatus(t, out)
	assert.False(t, st.SignedIn)
	assert.Equal(t, 20, st.XP)
}

func TestClientCommands_PasswordFromStdin(t *testing.T) {
	ts := startTestServer(t)
	cfg := writeClientConfig(t, ts.URL)

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(bytes.NewBufferString("s3cret\n"))
	cmd.SetArgs([]string{"--config", cfg, "register", "bob"})
	require.NoError(t, cmd.Execute())

	_, err := execCLI(t, cfg, "login", "bob", "--password", "s3cret")
	require.NoError(t, err)
}

func TestClientCommands_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("client:\n  storage: floppy\n"), 0o644))

	out, err := execCLI(t, path, "--format", "json", "status")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ErrCodeConfig, decodeError(t, out).Code)
}
