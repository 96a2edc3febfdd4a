package rotation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatcore/internal/domain"
	"chatcore/internal/protocol/permission"
	"chatcore/internal/services/keycache"
	"chatcore/internal/services/rotation"
	"chatcore/internal/services/servicetest"
	"chatcore/internal/store"
)

var errNetwork = errors.New("connection reset")

// flakyRemote applies the rotation and then reports a transport error, or
// fails before applying it.
type flakyRemote struct {
	*store.Memory
	apply bool
}

func (f *flakyRemote) PublishRotation(ctx context.Context, batch domain.RotationBatch) error {
	if f.apply {
		if err := f.Memory.PublishRotation(ctx, batch); err != nil {
			return err
		}
	}
	return errNetwork
}

// racyRemote runs inject once, right after the permissions are listed.
type racyRemote struct {
	*store.Memory
	inject func()
}

func (r *racyRemote) ListPermissions(ctx context.Context, owner domain.UserID) ([]domain.ServerPermission, error) {
	perms, err := r.Memory.ListPermissions(ctx, owner)
	if r.inject != nil {
		r.inject()
		r.inject = nil
	}
	return perms, err
}

func setup(t *testing.T) (*servicetest.World, *servicetest.Member, *servicetest.Member, domain.ConversationKeyBundle) {
	t.Helper()
	w := servicetest.NewWorld()
	alice, bob := w.Register(t, "alice"), w.Register(t, "bob")
	perms, bundle, err := permission.Make("conv-1", []domain.User{alice.User, bob.User}, alice.Device, time.Now())
	require.NoError(t, err)
	require.NoError(t, w.Backend.CreateConversation(context.Background(), domain.Conversation{
		ID:             "conv-1",
		ParticipantIDs: []domain.UserID{alice.User.ID, bob.User.ID},
	}, perms))
	return w, alice, bob, bundle
}

func TestRotate_ResealsAllPermissions(t *testing.T) {
	w, _, bob, bundle := setup(t)
	ctx := context.Background()
	before, err := bob.Account.EncryptionKeypair()
	require.NoError(t, err)

	res, err := rotation.New(bob.Account, w.Backend, w.Log).Rotate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Permissions)
	assert.NotEqual(t, before.Public, res.EncryptionPubkey)

	after, err := bob.Account.EncryptionKeypair()
	require.NoError(t, err)
	assert.Equal(t, res.EncryptionPubkey, after.Public)
	w.Refresh(t, bob)
	assert.Equal(t, after.Public, bob.User.EncryptionPubkey)

	// A fresh cache can still open the conversation key with the new keypair.
	cache := keycache.New(bob.Account, bob.Devices, w.Backend, w.Log)
	got, err := cache.Key(ctx, bundle.ID)
	require.NoError(t, err)
	assert.Equal(t, bundle.Key, got.Key)

	// The old keypair no longer opens the stored permission.
	sp, err := w.Backend.FetchPermission(ctx, bob.User.ID, bundle.ID)
	require.NoError(t, err)
	_, err = permission.DecryptKey(sp.ConversationKey, before)
	assert.ErrorIs(t, err, domain.ErrVerificationFailed)
}

func TestRotate_NoPermissions(t *testing.T) {
	w := servicetest.NewWorld()
	carol := w.Register(t, "carol")

	res, err := rotation.New(carol.Account, w.Backend, w.Log).Rotate(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Permissions)
}

func TestRotate_UnopenablePermissionPublishesNothing(t *testing.T) {
	w, alice, bob, _ := setup(t)
	ctx := context.Background()

	// A permission for bob sealed to alice's key cannot be re-sealed by bob.
	bad, _, err := permission.Make("conv-2", []domain.User{alice.User}, alice.Device, time.Now())
	require.NoError(t, err)
	bad[0].OwnerID = bob.User.ID
	require.NoError(t, w.Backend.PublishPermissions(ctx, bad))
	before := bob.User.EncryptionPubkey

	_, err = rotation.New(bob.Account, w.Backend, w.Log).Rotate(ctx)
	require.ErrorIs(t, err, domain.ErrVerificationFailed)

	w.Refresh(t, bob)
	assert.Equal(t, before, bob.User.EncryptionPubkey)
	_, pending, err := bob.Account.Pending()
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestResume_AfterAppliedRotation(t *testing.T) {
	w, _, bob, bundle := setup(t)
	ctx := context.Background()
	remote := &flakyRemote{Memory: w.Backend, apply: true}
	r := rotation.New(bob.Account, remote, w.Log)

	_, err := r.Rotate(ctx)
	require.ErrorIs(t, err, errNetwork)
	_, pending, err := bob.Account.Pending()
	require.NoError(t, err)
	require.True(t, pending)

	_, err = r.Rotate(ctx)
	require.ErrorIs(t, err, domain.ErrConfiguration)

	promoted, err := r.Resume(ctx)
	require.NoError(t, err)
	assert.True(t, promoted)

	cache := keycache.New(bob.Account, bob.Devices, w.Backend, w.Log)
	got, err := cache.Key(ctx, bundle.ID)
	require.NoError(t, err)
	assert.Equal(t, bundle.Key, got.Key)
}

func TestResume_AfterLostRotation(t *testing.T) {
	w, _, bob, _ := setup(t)
	ctx := context.Background()
	before, err := bob.Account.EncryptionKeypair()
	require.NoError(t, err)
	r := rotation.New(bob.Account, &flakyRemote{Memory: w.Backend}, w.Log)

	_, err = r.Rotate(ctx)
	require.ErrorIs(t, err, errNetwork)

	promoted, err := r.Resume(ctx)
	require.NoError(t, err)
	assert.False(t, promoted)

	after, err := bob.Account.EncryptionKeypair()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	_, pending, err := bob.Account.Pending()
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestResume_NothingPending(t *testing.T) {
	w, _, bob, _ := setup(t)
	promoted, err := rotation.New(bob.Account, w.Backend, w.Log).Resume(context.Background())
	require.NoError(t, err)
	assert.False(t, promoted)
}

func TestRotate_PermissionAddedDuringRotation(t *testing.T) {
	w, alice, bob, _ := setup(t)
	ctx := context.Background()
	before, err := bob.Account.EncryptionKeypair()
	require.NoError(t, err)

	var lateKey domain.ConversationKeyBundle
	remote := &racyRemote{Memory: w.Backend, inject: func() {
		perms, bundle, err := permission.Make("conv-2", []domain.User{alice.User, bob.User}, alice.Device, time.Now())
		require.NoError(t, err)
		require.NoError(t, w.Backend.CreateConversation(ctx, domain.Conversation{
			ID:             "conv-2",
			ParticipantIDs: []domain.UserID{alice.User.ID, bob.User.ID},
		}, perms))
		lateKey = bundle
	}}

	_, err = rotation.New(bob.Account, remote, w.Log).Rotate(ctx)
	require.ErrorIs(t, err, domain.ErrVerificationFailed)

	_, pending, err := bob.Account.Pending()
	require.NoError(t, err)
	assert.False(t, pending)
	current, err := bob.Account.EncryptionKeypair()
	require.NoError(t, err)
	assert.Equal(t, before.Public, current.Public)

	// The late permission is still readable, and a retry covers it.
	cache := keycache.New(bob.Account, bob.Devices, w.Backend, w.Log)
	_, err = cache.Key(ctx, lateKey.ID)
	require.NoError(t, err)

	res, err := rotation.New(bob.Account, w.Backend, w.Log).Rotate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Permissions)

	cache = keycache.New(bob.Account, bob.Devices, w.Backend, w.Log)
	got, err := cache.Key(ctx, lateKey.ID)
	require.NoError(t, err)
	assert.Equal(t, lateKey.Key, got.Key)
}
