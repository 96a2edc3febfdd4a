// Package metrics defines the Prometheus collectors chatcore exports.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"chatcore/internal/domain"
)

const namespace = "chatcore"

var (
	// DecodeFailures counts received messages that were discarded.
	DecodeFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decode_failures_total",
		Help:      "Received messages discarded during decoding, by error kind.",
	}, []string{"kind"})

	// PermissionFetches counts on-demand permission fetches by the key cache.
	PermissionFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "permission_fetches_total",
		Help:      "Permissions fetched on a key cache miss, by outcome.",
	}, []string{"kind"})

	// DeviceVerifications counts device lookups that went to the directory.
	DeviceVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "device_verifications_total",
		Help:      "Devices fetched and verified, by outcome.",
	}, []string{"kind"})

	// Rotations counts encryption keypair rotations.
	Rotations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rotations_total",
		Help:      "Encryption keypair rotations, by outcome.",
	}, []string{"kind"})

	// RelayRequests counts requests served by the relay.
	RelayRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_requests_total",
		Help:      "Relay HTTP requests, by route and status code.",
	}, []string{"route", "code"})
)

// Register adds every collector to reg. Collectors already registered with
// reg are skipped.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		DecodeFailures, PermissionFetches, DeviceVerifications, Rotations, RelayRequests,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Kind returns the label value for err: "ok" for nil, otherwise the name of
// its error kind.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrVerificationFailed):
		return "verification_failed"
	case errors.Is(err, domain.ErrMalformedInput):
		return "malformed_input"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConfiguration):
		return "configuration"
	default:
		return "other"
	}
}
