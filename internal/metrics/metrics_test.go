package metrics_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatcore/internal/domain"
	"chatcore/internal/metrics"
)

func TestKind(t *testing.T) {
	assert.Equal(t, "ok", metrics.Kind(nil))
	assert.Equal(t, "verification_failed", metrics.Kind(fmt.Errorf("x: %w", domain.VerificationFailed("sig"))))
	assert.Equal(t, "malformed_input", metrics.Kind(domain.Malformed("bad")))
	assert.Equal(t, "not_found", metrics.Kind(domain.NotFound("gone")))
	assert.Equal(t, "configuration", metrics.Kind(domain.Misconfigured("algo")))
	assert.Equal(t, "other", metrics.Kind(errors.New("boom")))
}

func TestRegister_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))
	require.NoError(t, metrics.Register(reg))

	before := testutil.ToFloat64(metrics.Rotations.WithLabelValues("ok"))
	metrics.Rotations.WithLabelValues("ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.Rotations.WithLabelValues("ok")))
}
