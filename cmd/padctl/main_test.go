package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/scratchpad/internal/auth"
	"github.com/patric-chuzhbe/scratchpad/internal/client/reconciler"
	"github.com/patric-chuzhbe/scratchpad/internal/db/memorystorage"
	"github.com/patric-chuzhbe/scratchpad/internal/ipchecker"
	"github.com/patric-chuzhbe/scratchpad/internal/router"
	"github.com/patric-chuzhbe/scratchpad/internal/service"
)

type device struct {
	t         *testing.T
	serverURL string
	stateFile string
}

func newDevice(t *testing.T, serverURL string) *device {
	return &device{
		t:         t,
		serverURL: serverURL,
		stateFile: filepath.Join(t.TempDir(), "state.db"),
	}
}

// run executes one padctl invocation and returns its stdout and stderr.
func (d *device) run(stdin string, args ...string) (string, string, error) {
	d.t.Helper()
	root, env := newRootCmd()

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{
		"--server-url", d.serverURL,
		"--state-file", d.stateFile,
		"--debounce", "10ms",
		"--log-level", "error",
	}, args...))

	err := root.ExecuteContext(context.Background())
	env.close()

	return stdout.String(), stderr.String(), err
}

func (d *device) mustRun(args ...string) string {
	d.t.Helper()
	stdout, stderr, err := d.run("", args...)
	require.NoError(d.t, err, stderr)

	return stdout
}

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	checker, err := ipchecker.New("")
	require.NoError(t, err)

	server := httptest.NewServer(router.New(
		service.New(memorystorage.New(), bcrypt.MinCost),
		auth.New("scratchpad_token", []byte("padctl-test-key"), true),
		checker,
	))
	t.Cleanup(server.Close)

	return server
}

func TestLocalEditing(t *testing.T) {
	laptop := newDevice(t, "http://127.0.0.1:1")

	assert.Equal(t, "* 1\t\t0 chars\n", laptop.mustRun("tabs", "list"))
	assert.Equal(t, "2\n", laptop.mustRun("tabs", "new"))

	_, _, err := laptop.run("from stdin", "tabs", "write", "2", "-")
	require.NoError(t, err)
	laptop.mustRun("tabs", "rename", "2", "shopping", "list")
	laptop.mustRun("tabs", "write", "1", "hello")

	assert.Equal(t, "from stdin", laptop.mustRun("tabs", "show"))
	assert.Equal(t, "hello", laptop.mustRun("tabs", "show", "1"))
	assert.Equal(t, "  1\t\t5 chars\n* 2\tshopping list\t10 chars\n", laptop.mustRun("tabs", "list"))

	laptop.mustRun("tabs", "select", "1")
	laptop.mustRun("tabs", "close", "2")
	assert.Equal(t, "* 1\t\t5 chars\n", laptop.mustRun("tabs", "list"))

	_, _, err = laptop.run("", "tabs", "close", "1")
	assert.Error(t, err)
	_, _, err = laptop.run("", "tabs", "show", "7")
	assert.Error(t, err)

	assert.Equal(t, "light\n", laptop.mustRun("theme"))
	assert.Equal(t, "dark\n", laptop.mustRun("theme"))

	laptop.mustRun("tabs", "clear")
	assert.Equal(t, "* 1\t\t0 chars\n", laptop.mustRun("tabs", "list"))
}

func TestSyncAcrossDevices(t *testing.T) {
	server := setupTestServer(t)
	laptop := newDevice(t, server.URL)
	phone := newDevice(t, server.URL)

	laptop.mustRun("tabs", "write", "1", "draft")
	_, stderr, err := laptop.run("", "register", "alice01", "pin1234")
	require.NoError(t, err)
	assert.Contains(t, stderr, "ok: Registered as alice01")
	assert.Contains(t, stderr, "ok: Synced")

	laptop.mustRun("tabs", "new")
	laptop.mustRun("tabs", "write", "2", "second")

	_, stderr, err = phone.run("", "login", "Alice01", "pin1234")
	require.NoError(t, err)
	assert.Contains(t, stderr, "ok: Loaded 2 tab(s) from cloud")
	assert.Equal(t, "draft", phone.mustRun("tabs", "show", "1"))
	assert.Equal(t, "second", phone.mustRun("tabs", "show", "2"))

	laptop.mustRun("tabs", "close", "2")
	phone.mustRun("sync")
	assert.Equal(t, "* 1\t\t5 chars\n", phone.mustRun("tabs", "list"))

	phone.mustRun("logout")
	_, _, err = phone.run("", "sync")
	assert.ErrorIs(t, err, reconciler.ErrNotSignedIn)
	_, _, err = phone.run("", "watch")
	assert.ErrorIs(t, err, reconciler.ErrNotSignedIn)
}

func TestLoginFailure(t *testing.T) {
	server := setupTestServer(t)
	phone := newDevice(t, server.URL)

	_, stderr, err := phone.run("", "login", "nobody1", "pin1234")
	assert.Error(t, err)
	assert.Contains(t, stderr, "sync error: Login failed: Invalid username or PIN")
}

func TestHealth(t *testing.T) {
	server := setupTestServer(t)

	stdout := newDevice(t, server.URL).mustRun("health")
	assert.True(t, strings.HasPrefix(stdout, "ok "), stdout)

	_, _, err := newDevice(t, "http://127.0.0.1:1").run("", "health")
	assert.Error(t, err)
}
