package reply

import (
	"github.com/filipenf/mcrouter/mc"
)

// Wire bridge between the reply and the legacy message record.  Two explicit
// shapes: DependentMsg borrows from the reply, ReleasedMsg is a standalone
// snapshot.  Fields not meaningful for the operation are left at their zero
// value per the operation's trait entry.

// DependentMsg fills the caller-provided msg so it represents this reply for
// the given op.  The msg's buffers alias memory owned by the reply: it is
// valid only while the reply is alive and unmodified.
func (r *Reply) DependentMsg(op mc.Op, out *mc.Msg) {
	*out = mc.Msg{Op: op, Result: r.result}
	r.fill(op, out)

	if r.wantValue(op) {
		out.Value = r.Value().Bytes()
	}
	if r.ep != nil {
		out.IPVersion = r.ep.version
		out.IPAddress = r.ep.addr
	}
}

// ReleasedMsg returns a self-contained msg representing this reply for the
// given op.  The msg and the reply do not depend on each other: the reply
// remains valid and either may be mutated or dropped freely afterwards.
func (r *Reply) ReleasedMsg(op mc.Op) *mc.Msg {
	out := &mc.Msg{Op: op, Result: r.result}
	r.fill(op, out)

	if r.wantValue(op) {
		b := r.Value().Bytes()
		out.Value = make([]byte, len(b))
		copy(out.Value, b)
	}
	if r.ep != nil {
		out.IPVersion = r.ep.version
		out.IPAddress = append(out.IPAddress, r.ep.addr...)
	}
	return out
}

// fill maps the scalar metadata onto the msg under the op's field mask.  The
// app-specific error code is always carried: it qualifies error results,
// which any op can produce.
func (r *Reply) fill(op mc.Op, out *mc.Msg) {
	t := mc.TraitsOf(op)
	if t.Fields&mc.FieldFlags != 0 {
		out.Flags = r.flags
	}
	if t.Fields&mc.FieldExptime != 0 {
		out.Exptime = r.exptime
	}
	if t.Fields&mc.FieldNumber != 0 {
		out.Number = r.number
	}
	if t.Fields&mc.FieldLeaseToken != 0 {
		out.LeaseToken = r.leaseToken
	}
	if t.Fields&mc.FieldCas != 0 {
		out.Cas = r.cas
	}
	if t.Fields&mc.FieldDelta != 0 {
		out.Delta = r.delta
	}
	out.ErrCode = r.errCode
}

// wantValue returns whether the payload belongs on the wire: either the op
// carries a value or the reply is an error whose payload is the message.
func (r *Reply) wantValue(op mc.Op) bool {
	if !r.HasValue() {
		return false
	}
	return mc.HasField(op, mc.FieldValue) || r.IsError()
}
