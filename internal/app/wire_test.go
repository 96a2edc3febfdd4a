package app_test

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatcore/internal/app"
	"chatcore/internal/domain"
	"chatcore/internal/kdf"
	"chatcore/internal/store"
)

func newClient(t *testing.T, relayURL, name string) *app.Wire {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := app.DefaultConfig()
	cfg.Relay.URL = relayURL
	w := app.NewWireWith(cfg, log, store.NewMemoryLocalStorage(name), kdf.Insecure{})

	_, _, err := w.Account.Register(context.Background(), w.Relay, name, name+"@example.com", "Correct-Horse-42")
	require.NoError(t, err)
	return w
}

func TestWireEndToEnd(t *testing.T) {
	ctx := context.Background()
	log := logrus.New()
	log.SetOutput(io.Discard)

	srv, err := app.NewRelayServer(store.NewMemory(), log, nil)
	require.NoError(t, err)
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	alice := newClient(t, ts.URL, "alice")
	bob := newClient(t, ts.URL, "bob")

	bobDev, err := bob.Account.Device()
	require.NoError(t, err)

	conv, err := alice.Conversations.Create(ctx, "c-1", "lunch", []domain.UserID{bobDev.OwnerID})
	require.NoError(t, err)

	_, err = alice.Messages.SendText(ctx, conv.ID, 0, "hi bob")
	require.NoError(t, err)

	require.NoError(t, bob.Sync(ctx))
	got, err := bob.Messages.Receive(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hi bob", got[0].Message.Content)

	reply, err := bob.Messages.SendReaction(ctx, conv.ID, got[0].ID, "+1")
	require.NoError(t, err)
	assert.Equal(t, got[0].ID, reply.Context.ParentMessageID)
}

func TestWireLogout(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	srv, err := app.NewRelayServer(store.NewMemory(), log, nil)
	require.NoError(t, err)
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	alice := newClient(t, ts.URL, "alice")
	require.NoError(t, alice.Logout())

	_, err = alice.Account.Device()
	require.ErrorIs(t, err, domain.ErrNotFound)
}
