package commands_test

import (
	"bytes"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatcore/cmd/chatcore/commands"
	"chatcore/internal/relay"
	"chatcore/internal/store"
)

const testPassword = "Correct-Horse-42"

type cli struct {
	t      *testing.T
	home   string
	config string
	relay  string
}

func newCLI(t *testing.T, relayURL string) *cli {
	t.Helper()
	dir := t.TempDir()
	config := filepath.Join(dir, "chatcore.yaml")
	require.NoError(t, os.WriteFile(config, []byte(`
log:
  level: error
kdf:
  argon2:
    time: 1
    memoryKiB: 1024
`), 0o600))
	return &cli{t: t, home: filepath.Join(dir, "home"), config: config, relay: relayURL}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	root := commands.NewRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--home", c.home, "--config", c.config, "--relay", c.relay}, args...))
	err := root.Execute()
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "chatcore %s", strings.Join(args, " "))
	return out
}

func TestCLIConversationFlow(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	srv := relay.NewServer(store.NewMemory(), log, nil)
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	alice := newCLI(t, ts.URL)
	bob := newCLI(t, ts.URL)

	alice.mustRun("register", "alice", "--email", "alice@example.com", "-p", testPassword)
	out := bob.mustRun("register", "bob", "--email", "bob@example.com", "-p", testPassword)

	var (
		name   string
		bobID  int64
		device string
	)
	_, err := fmt.Sscanf(out, "Registered user %s as %d with device %s", &name, &bobID, &device)
	require.NoError(t, err)

	out = alice.mustRun("conversation", "create", "lunch", fmt.Sprint(bobID))
	convID := strings.TrimSpace(strings.TrimPrefix(out, "Created conversation "))
	require.NotEmpty(t, convID)

	alice.mustRun("send", convID, "hi bob")

	out = bob.mustRun("recv", convID)
	assert.Contains(t, out, "hi bob")

	out = bob.mustRun("conversation", "list")
	assert.Contains(t, out, convID)
	assert.Contains(t, out, "lunch")
}

func TestCLIRejectsBadInput(t *testing.T) {
	c := newCLI(t, "http://127.0.0.1:1")

	_, err := c.run("fingerprint")
	require.Error(t, err)

	_, err = c.run("register", "carol", "--email", "carol@example.com", "-p", "short")
	require.Error(t, err)

	_, err = c.run("conversation", "create", "lunch", "not-a-number")
	require.Error(t, err)
}
