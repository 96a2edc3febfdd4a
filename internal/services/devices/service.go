package devices

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"chatcore/internal/domain"
	"chatcore/internal/metrics"
	"chatcore/internal/protocol/device"
)

// Directory is a verifying, caching DeviceResolver.
type Directory struct {
	remote domain.DeviceDirectory
	log    logrus.FieldLogger

	mu    sync.RWMutex
	cache map[domain.DeviceID]domain.ServerDevice
}

// New returns a Directory backed by remote.
func New(remote domain.DeviceDirectory, log logrus.FieldLogger) *Directory {
	return &Directory{
		remote: remote,
		log:    log.WithField("component", "devices"),
		cache:  make(map[domain.DeviceID]domain.ServerDevice),
	}
}

// Get returns the verified device with id.
func (d *Directory) Get(ctx context.Context, id domain.DeviceID) (domain.ServerDevice, error) {
	d.mu.RLock()
	dev, ok := d.cache[id]
	d.mu.RUnlock()
	if ok {
		return dev, nil
	}

	dev, err := d.fetchAndVerify(ctx, id)
	metrics.DeviceVerifications.WithLabelValues(metrics.Kind(err)).Inc()
	if err != nil {
		return domain.ServerDevice{}, err
	}

	d.mu.Lock()
	d.cache[id] = dev
	d.mu.Unlock()
	return dev, nil
}

// Clear drops all cached devices.
func (d *Directory) Clear() {
	d.mu.Lock()
	d.cache = make(map[domain.DeviceID]domain.ServerDevice)
	d.mu.Unlock()
}

func (d *Directory) fetchAndVerify(ctx context.Context, id domain.DeviceID) (domain.ServerDevice, error) {
	dev, err := d.remote.FetchDevice(ctx, id)
	if err != nil {
		return domain.ServerDevice{}, err
	}
	if dev.ID != id {
		d.log.WithField("device", id).Warn("directory returned a different device")
		return domain.ServerDevice{}, domain.VerificationFailed("device %s: directory returned %s", id, dev.ID)
	}
	if err := device.VerifyServerDevice(dev); err != nil {
		d.log.WithField("device", id).WithError(err).Warn("rejecting unverifiable device")
		return domain.ServerDevice{}, err
	}
	return dev, nil
}

// Compile-time assertion that Directory implements domain.DeviceResolver.
var _ domain.DeviceResolver = (*Directory)(nil)
