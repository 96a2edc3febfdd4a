package app

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"chatcore/internal/domain"
	"chatcore/internal/relay"
	"chatcore/internal/services/account"
	"chatcore/internal/services/conversation"
	"chatcore/internal/services/devices"
	"chatcore/internal/services/keycache"
	"chatcore/internal/services/message"
	"chatcore/internal/services/rotation"
	"chatcore/internal/store"
)

// Wire bundles the stores, clients and services used by the CLI.
type Wire struct {
	Config  Config
	Log     *logrus.Logger
	Storage domain.LocalStorage

	Account       *account.Service
	Relay         *relay.Client
	Devices       *devices.Directory
	Keys          *keycache.Cache
	Conversations *conversation.Service
	Messages      *message.Service
	Rotation      *rotation.Rotator
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config, log *logrus.Logger) (*Wire, error) {
	hardener, err := cfg.KDF.Hardener()
	if err != nil {
		return nil, err
	}
	return NewWireWith(cfg, log, store.NewLocalFileStore(cfg.Home, cfg.StoragePrefix), hardener), nil
}

// NewWireWith builds the graph over the given local storage and hardener.
func NewWireWith(
	cfg Config,
	log *logrus.Logger,
	storage domain.LocalStorage,
	hardener domain.PasswordHardener,
) *Wire {
	acct := account.New(storage, hardener, log)

	rc := relay.NewClient(cfg.Relay.URL, acct, log)
	rc.HTTP = &http.Client{Timeout: cfg.Relay.Timeout}

	dir := devices.New(rc, log)
	keys := keycache.New(acct, dir, rc, log)

	return &Wire{
		Config:        cfg,
		Log:           log,
		Storage:       storage,
		Account:       acct,
		Relay:         rc,
		Devices:       dir,
		Keys:          keys,
		Conversations: conversation.New(acct, rc, keys, log),
		Messages:      message.New(acct, dir, keys, rc, log),
		Rotation:      rotation.New(acct, rc, log),
	}
}

// Sync loads every permission the relay holds for the current user into
// the key cache.
func (w *Wire) Sync(ctx context.Context) error {
	dev, err := w.Account.Device()
	if err != nil {
		return err
	}
	perms, err := w.Relay.ListPermissions(ctx, dev.OwnerID)
	if err != nil {
		return err
	}
	return w.Keys.FillCaches(ctx, perms)
}

// Logout wipes local account state and in-memory caches.
func (w *Wire) Logout() error {
	w.Keys.Clear()
	w.Devices.Clear()
	return w.Account.Clear()
}
