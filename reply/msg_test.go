package reply

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/filipenf/mcrouter/mc"
)

func metaReply() *Reply {
	r := NewValueString(mc.ResFound, "payload")
	r.SetFlags(7)
	r.SetExptime(60)
	r.SetCas(42)
	r.SetLeaseToken(9)
	r.SetDelta(3)
	r.SetNumber(2)
	r.SetAppSpecificErrorCode(5)
	r.SetIpAddress(net.ParseIP("10.0.0.1"), 4)
	return r
}

func TestReleasedMsgRoundTrip(t *testing.T) {
	r := metaReply()
	m := r.ReleasedMsg(mc.OpGets)

	assert.Equal(t, mc.OpGets, m.Op)
	assert.Equal(t, mc.ResFound, m.Result)
	assert.Equal(t, "payload", string(m.Value))
	assert.Equal(t, uint64(7), m.Flags)
	assert.Equal(t, uint64(42), m.Cas)
	assert.Equal(t, uint32(5), m.ErrCode)
	assert.Equal(t, uint8(4), m.IPVersion)
	assert.Equal(t, "10.0.0.1", m.IPAddress.String())
}

func TestReleasedMsgIndependent(t *testing.T) {
	r := metaReply()
	m := r.ReleasedMsg(mc.OpGet)

	// mutate and destroy the source reply; the msg must be unaffected
	r.SetValueString("changed")
	r.SetFlags(0)
	r.Release()

	assert.Equal(t, "payload", string(m.Value))
	assert.Equal(t, uint64(7), m.Flags)
}

func TestDependentMsgAliases(t *testing.T) {
	r := metaReply()
	var m mc.Msg
	r.DependentMsg(mc.OpGet, &m)

	assert.Equal(t, "payload", string(m.Value))

	// same backing bytes as the reply's buffer, not a copy
	src := r.Value().Bytes()
	assert.Same(t, &src[0], &m.Value[0])
}

func TestMsgFieldMask(t *testing.T) {
	r := metaReply()

	// delete carries no value/flags/cas on the wire
	m := r.ReleasedMsg(mc.OpDelete)
	assert.Nil(t, m.Value)
	assert.Zero(t, m.Flags)
	assert.Zero(t, m.Cas)
	// error code is always carried
	assert.Equal(t, uint32(5), m.ErrCode)

	// lease-get carries the token, plain get does not
	assert.Equal(t, uint64(9), r.ReleasedMsg(mc.OpLeaseGet).LeaseToken)
	assert.Zero(t, r.ReleasedMsg(mc.OpGet).LeaseToken)

	// incr carries the delta
	assert.Equal(t, uint64(3), r.ReleasedMsg(mc.OpIncr).Delta)
}

func TestMsgErrorCarriesValue(t *testing.T) {
	r := Error("backend exploded")

	// delete has no value field, but an error reply's payload is its message
	m := r.ReleasedMsg(mc.OpDelete)
	assert.Equal(t, mc.ResLocalError, m.Result)
	assert.Equal(t, "backend exploded", string(m.Value))
}

func TestMsgNoValue(t *testing.T) {
	r := NewResult(mc.ResNotFound)
	m := r.ReleasedMsg(mc.OpGet)
	assert.Nil(t, m.Value)
	assert.Zero(t, m.IPVersion)
	assert.Nil(t, m.IPAddress)
}
