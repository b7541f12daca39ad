package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	// a second call must not panic on duplicate registration
	Register(reg)

	Logins.WithLabelValues(Succeeded).Inc()
	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "booksys_logins_total")
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, Succeeded, Outcome(nil))
	assert.Equal(t, Failed, Outcome(errors.New("boom")))
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(BookOps.WithLabelValues("add", Succeeded))
	BookOps.WithLabelValues("add", Succeeded).Add(2)
	assert.Equal(t, before+2, testutil.ToFloat64(BookOps.WithLabelValues("add", Succeeded)))
}
