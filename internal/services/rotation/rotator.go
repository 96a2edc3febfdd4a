package rotation

import (
	"context"

	"github.com/sirupsen/logrus"

	"chatcore/internal/crypto"
	"chatcore/internal/domain"
	"chatcore/internal/metrics"
	"chatcore/internal/protocol/permission"
	"chatcore/internal/services/account"
)

// Account is the local account state a rotation needs.
type Account interface {
	domain.CurrentAccount
	WrappingKey() (domain.SymmetricKey, error)
	StagePending(kp domain.EncryptionKeypair) error
	Pending() (domain.EncryptionKeypair, bool, error)
	CommitPending() error
	DiscardPending() error
}

// Remote is the server side of a rotation.
type Remote interface {
	domain.PermissionStore
	domain.UserDirectory
	domain.AccountPublisher
}

// Result describes a completed rotation.
type Result struct {
	EncryptionPubkey domain.X25519Public
	Permissions      int
}

// Rotator runs user-level key rotations.
type Rotator struct {
	account Account
	remote  Remote
	log     logrus.FieldLogger
}

// New returns a Rotator.
func New(acct Account, remote Remote, log logrus.FieldLogger) *Rotator {
	return &Rotator{account: acct, remote: remote, log: log.WithField("component", "rotation")}
}

// Rotate generates a new encryption keypair, re-seals every permission the
// user owns and publishes the result. Nothing is published unless every
// permission could be re-sealed.
//
// If publishing fails with a transport error the new keypair stays staged
// and Resume must be called before the next rotation.
func (r *Rotator) Rotate(ctx context.Context) (Result, error) {
	res, err := r.rotate(ctx)
	metrics.Rotations.WithLabelValues(metrics.Kind(err)).Inc()
	return res, err
}

func (r *Rotator) rotate(ctx context.Context) (Result, error) {
	if _, pending, err := r.account.Pending(); err != nil {
		return Result{}, err
	} else if pending {
		return Result{}, domain.Misconfigured("rotation: an earlier rotation is still pending")
	}

	dev, err := r.account.Device()
	if err != nil {
		return Result{}, err
	}
	oldKP, err := r.account.EncryptionKeypair()
	if err != nil {
		return Result{}, err
	}
	newKP, err := crypto.GenerateEncryptionKeypair()
	if err != nil {
		return Result{}, err
	}

	perms, err := r.remote.ListPermissions(ctx, dev.OwnerID)
	if err != nil {
		return Result{}, err
	}
	rotated := make([]domain.ServerPermission, 0, len(perms))
	for _, p := range perms {
		if p.OwnerID != dev.OwnerID {
			return Result{}, domain.Malformed("rotation: permission %s is owned by %d", p.ConversationKeyID, p.OwnerID)
		}
		np, err := permission.Rotate(p, oldKP, newKP)
		if err != nil {
			return Result{}, err
		}
		rotated = append(rotated, np)
	}

	wk, err := r.account.WrappingKey()
	if err != nil {
		return Result{}, err
	}
	wrapped, err := account.WrapEncryptionPrivkey(newKP.Private, wk)
	if err != nil {
		return Result{}, err
	}
	if err := r.account.StagePending(newKP); err != nil {
		return Result{}, err
	}

	err = r.remote.PublishRotation(ctx, domain.RotationBatch{
		UserID:                   dev.OwnerID,
		EncryptionPubkey:         newKP.Public,
		EncryptionPrivkeyWrapped: wrapped,
		Permissions:              rotated,
	})
	if err != nil {
		if domain.IsKnownKind(err) {
			// The server answered and refused the batch.
			if derr := r.account.DiscardPending(); derr != nil {
				r.log.WithError(derr).Error("discarding pending keypair")
			}
		} else {
			r.log.WithError(err).Warn("rotation outcome unknown, keypair left pending")
		}
		return Result{}, err
	}
	if err := r.account.CommitPending(); err != nil {
		return Result{}, err
	}

	r.log.WithFields(logrus.Fields{
		"user":        dev.OwnerID,
		"permissions": len(rotated),
	}).Info("rotated encryption keypair")
	return Result{EncryptionPubkey: newKP.Public, Permissions: len(rotated)}, nil
}

// Resume settles a pending rotation against the server's view of the user.
// It reports whether a pending keypair was promoted.
func (r *Rotator) Resume(ctx context.Context) (bool, error) {
	pending, ok, err := r.account.Pending()
	if err != nil || !ok {
		return false, err
	}
	dev, err := r.account.Device()
	if err != nil {
		return false, err
	}
	user, err := r.remote.FetchUser(ctx, dev.OwnerID)
	if err != nil {
		return false, err
	}
	current, err := r.account.EncryptionKeypair()
	if err != nil {
		return false, err
	}

	switch user.EncryptionPubkey {
	case pending.Public:
		if err := r.account.CommitPending(); err != nil {
			return false, err
		}
		r.log.WithField("user", dev.OwnerID).Info("resumed rotation: pending keypair promoted")
		return true, nil
	case current.Public:
		r.log.WithField("user", dev.OwnerID).Info("resumed rotation: server kept the old keypair")
		return false, r.account.DiscardPending()
	default:
		return false, domain.VerificationFailed("rotation: server key for user %d matches neither local keypair",
			dev.OwnerID)
	}
}
