package reply

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filipenf/mcrouter/ap"
	"github.com/filipenf/mcrouter/mc"
)

func TestTkoReply(t *testing.T) {
	r := Tko()
	assert.True(t, r.IsTko())
	assert.True(t, r.IsError())
	assert.Equal(t, mc.ResTko, r.Result())
	assert.False(t, r.HasValue())
}

func TestStoredReply(t *testing.T) {
	r := NewValueString(mc.ResStored, "ok")
	assert.True(t, r.IsStored())
	assert.True(t, r.HasValue())
	assert.Equal(t, "ok", string(r.ValueRangeSlow()))
}

func TestFreshRepliesHaveNoValue(t *testing.T) {
	for _, r := range []*Reply{New(), Default(mc.OpGet), Error(""), Tko()} {
		assert.False(t, r.HasValue())
		assert.True(t, r.Value().Empty())
		assert.Nil(t, r.ValueRangeSlow())
	}
}

func TestErrorReply(t *testing.T) {
	r := Error("route failed")
	assert.Equal(t, mc.ResLocalError, r.Result())
	assert.True(t, r.IsLocalError())
	assert.True(t, r.IsError())
	assert.Equal(t, "route failed", string(r.ValueRangeSlow()))
}

func TestDefaultReplyPerOp(t *testing.T) {
	assert.Equal(t, mc.ResFound, Default(mc.OpGet).Result())
	assert.Equal(t, mc.ResDeleted, Default(mc.OpDelete).Result())
	assert.Equal(t, mc.ResStored, Default(mc.OpSet).Result())
}

func TestUnknownUntilSet(t *testing.T) {
	r := New()
	assert.Equal(t, mc.ResUnknown, r.Result())
	r.SetResult(mc.ResFound)
	assert.Equal(t, mc.ResFound, r.Result())
}

func TestScalarMutators(t *testing.T) {
	r := New()
	r.SetFlags(42)
	r.SetExptime(300)
	r.SetNumber(7)
	r.SetLeaseToken(99)
	r.SetCas(123456)
	r.SetDelta(10)
	r.SetAppSpecificErrorCode(17)

	assert.Equal(t, uint64(42), r.Flags())
	assert.Equal(t, uint32(300), r.Exptime())
	assert.Equal(t, uint32(7), r.Number())
	assert.Equal(t, uint64(99), r.LeaseToken())
	assert.Equal(t, uint64(123456), r.Cas())
	assert.Equal(t, uint64(10), r.Delta())
	assert.Equal(t, uint32(17), r.AppSpecificErrorCode())
}

func TestDestinationShared(t *testing.T) {
	a, err := ap.Parse("10.0.0.1:11211", ap.ProtoAscii)
	require.NoError(t, err)

	r1, r2 := New(), New()
	r1.SetDestination(a)
	r2.SetDestination(a)

	assert.Same(t, a, r1.Destination())
	assert.Same(t, r1.Destination(), r2.Destination())
}

func TestLazyEndpoint(t *testing.T) {
	r := New()
	assert.Nil(t, r.IPAddress())
	assert.Equal(t, uint8(0), r.IPVersion())

	r.SetIpAddress(net.ParseIP("10.1.2.3"), 4)
	assert.Equal(t, "10.1.2.3", r.IPAddress().String())
	assert.Equal(t, uint8(4), r.IPVersion())
}

func TestDestructorFiresOnce(t *testing.T) {
	var calls int
	r := New()
	r.SetDestructor(func(ctx interface{}) {
		calls++
		assert.Equal(t, "ctx", ctx)
	}, "ctx")

	r.Release()
	assert.Equal(t, 1, calls)
}

func TestDoubleDestructorPanics(t *testing.T) {
	r := New()
	r.SetDestructor(func(interface{}) {}, nil)
	assert.Panics(t, func() {
		r.SetDestructor(func(interface{}) {}, nil)
	})
}

func TestDoubleReleasePanics(t *testing.T) {
	r := New()
	r.Release()
	assert.Panics(t, func() { r.Release() })
}

func TestReleaseWithoutDestructor(t *testing.T) {
	assert.NotPanics(t, func() { New().Release() })
}

func TestSetValueReplaces(t *testing.T) {
	r := NewValueString(mc.ResFound, "old")
	r.SetValueBytes([]byte("new"))
	assert.Equal(t, "new", string(r.ValueRangeSlow()))

	r.SetValue(nil)
	assert.True(t, r.HasValue())
	assert.True(t, r.Value().Empty())
}
