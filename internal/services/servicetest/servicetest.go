// Package servicetest builds registered users on an in-memory backend for
// service tests.
package servicetest

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"chatcore/internal/domain"
	"chatcore/internal/kdf"
	"chatcore/internal/services/account"
	"chatcore/internal/services/devices"
	"chatcore/internal/services/keycache"
	"chatcore/internal/store"
)

// Password satisfies the account password policy.
const Password = "Correct-Horse-42"

// World is a shared in-memory backend.
type World struct {
	Backend *store.Memory
	Log     *logrus.Logger
}

// NewWorld returns an empty World with a silent logger.
func NewWorld() *World {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &World{Backend: store.NewMemory(), Log: log}
}

// Member is one registered user with their own local state.
type Member struct {
	User    domain.User
	Device  domain.LocalDevice
	Account *account.Service
	Devices *devices.Directory
	Keys    *keycache.Cache
}

// Register creates a user with a fresh device and local storage.
func (w *World) Register(t *testing.T, name string) *Member {
	t.Helper()
	acct := account.New(store.NewMemoryLocalStorage(name), kdf.Insecure{}, w.Log)
	user, dev, err := acct.Register(context.Background(), w.Backend, name, name+"@example.com", Password)
	require.NoError(t, err)
	dir := devices.New(w.Backend, w.Log)
	return &Member{
		User:    user,
		Device:  dev,
		Account: acct,
		Devices: dir,
		Keys:    keycache.New(acct, dir, w.Backend, w.Log),
	}
}

// Refresh reloads m.User from the backend.
func (w *World) Refresh(t *testing.T, m *Member) {
	t.Helper()
	u, err := w.Backend.FetchUser(context.Background(), m.User.ID)
	require.NoError(t, err)
	m.User = u
}
