package mcrouter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filipenf/mcrouter/ap"
	"github.com/filipenf/mcrouter/mc"
	"github.com/filipenf/mcrouter/reply"
)

func observed(res mc.Result, a *ap.AccessPoint) *reply.Reply {
	r := reply.NewResult(res)
	r.SetDestination(a)
	return r
}

func TestHardErrorTripsImmediately(t *testing.T) {
	a, err := ap.Parse("10.0.0.1:11211", ap.ProtoAscii)
	require.NoError(t, err)

	tr := NewTkoTracker(3)
	assert.False(t, tr.IsTko(a))

	tr.Observe(observed(mc.ResConnectError, a))
	assert.True(t, tr.IsTko(a))
}

func TestSoftErrorsTripAtThreshold(t *testing.T) {
	a, _ := ap.Parse("10.0.0.1:11211", ap.ProtoAscii)
	tr := NewTkoTracker(2)

	tr.Observe(observed(mc.ResTimeout, a))
	assert.False(t, tr.IsTko(a))
	tr.Observe(observed(mc.ResTimeout, a))
	assert.True(t, tr.IsTko(a))
}

func TestSuccessResets(t *testing.T) {
	a, _ := ap.Parse("10.0.0.1:11211", ap.ProtoAscii)
	tr := NewTkoTracker(2)

	tr.Observe(observed(mc.ResTimeout, a))
	tr.Observe(observed(mc.ResFound, a))
	tr.Observe(observed(mc.ResTimeout, a))
	assert.False(t, tr.IsTko(a))

	// recovery after a trip
	tr.Observe(observed(mc.ResConnectError, a))
	assert.True(t, tr.IsTko(a))
	tr.Observe(observed(mc.ResFound, a))
	assert.False(t, tr.IsTko(a))
}

func TestSyntheticTkoIgnored(t *testing.T) {
	a, _ := ap.Parse("10.0.0.1:11211", ap.ProtoAscii)
	tr := NewTkoTracker(1)

	// fabricated gate replies must not feed back into the tracker
	tr.Observe(observed(mc.ResTko, a))
	assert.False(t, tr.IsTko(a))

	// replies without a destination carry no signal
	tr.Observe(reply.NewResult(mc.ResConnectError))
	assert.False(t, tr.IsTko(a))
}

func TestReset(t *testing.T) {
	a, _ := ap.Parse("10.0.0.1:11211", ap.ProtoAscii)
	tr := NewTkoTracker(1)

	tr.Observe(observed(mc.ResConnectError, a))
	require.True(t, tr.IsTko(a))
	tr.Reset(a)
	assert.False(t, tr.IsTko(a))
}

func TestSnapshot(t *testing.T) {
	a, _ := ap.Parse("10.0.0.1:11211", ap.ProtoAscii)
	b, _ := ap.Parse("10.0.0.2:11211", ap.ProtoAscii)
	tr := NewTkoTracker(5)

	tr.Observe(observed(mc.ResConnectError, a))
	tr.Observe(observed(mc.ResTimeout, b))

	snap := tr.Snapshot()
	assert.Equal(t, 5, snap["threshold"])
	assert.Equal(t, []string{"10.0.0.1:11211"}, snap["tripped"])
	assert.Equal(t, map[string]int{"10.0.0.2:11211": 1}, snap["failures"])
}
