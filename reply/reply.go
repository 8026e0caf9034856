// Package reply implements the reply value object at the center of the
// routing proxy: one Reply per destination outcome, classified through the
// result taxonomy, reduced across fan-outs and bridged to the legacy wire
// message.
package reply

import (
	"net"

	"github.com/filipenf/mcrouter/ap"
	"github.com/filipenf/mcrouter/iobuf"
	"github.com/filipenf/mcrouter/mc"
)

// Destructor is a foreign release callback.  It is invoked with its context
// exactly once, when the owning reply is released.
type Destructor func(ctx interface{})

type foreignHook struct {
	fn  Destructor
	ctx interface{}
}

// endpoint holds the responding backend's address.  Materialized only when
// explicitly set.
type endpoint struct {
	addr    net.IP
	version uint8
}

// Reply is the uniform representation of one destination's outcome for one
// operation.  It owns its payload buffer and any attached foreign resource;
// hand it between goroutines by transferring the pointer, never by sharing.
// The one shared sub-object is the destination descriptor, which is
// immutable.
type Reply struct {
	result mc.Result
	value  *iobuf.Buf
	dest   *ap.AccessPoint

	flags      uint64
	leaseToken uint64
	delta      uint64
	cas        uint64
	errCode    uint32
	number     uint32
	exptime    uint32

	ep *endpoint

	hook     *foreignHook
	released bool
}

// New returns a reply with no result set yet.
func New() *Reply {
	return &Reply{result: mc.ResUnknown}
}

// NewResult returns a reply carrying the given result.
func NewResult(res mc.Result) *Reply {
	return &Reply{result: res}
}

// Default constructs the canonical success reply for an operation, e.g. an
// immediate reply for an async operation or a delete queued for replay.
func Default(op mc.Op) *Reply {
	return &Reply{result: mc.DefaultResult(op)}
}

// Error constructs a routing-error reply.  A non-empty msg is carried as the
// payload.
func Error(msg string) *Reply {
	r := &Reply{result: mc.ResLocalError}
	if msg != "" {
		r.SetValueString(msg)
	}
	return r
}

// Tko constructs a reply signalling that no send was attempted because the
// destination is presumed down.  Senders may failover immediately on it.
func Tko() *Reply {
	return &Reply{result: mc.ResTko}
}

// NewValue returns a reply with the given result and payload buffer.  The
// reply takes ownership of the buffer.
func NewValue(res mc.Result, v *iobuf.Buf) *Reply {
	r := &Reply{result: res}
	r.SetValue(v)
	return r
}

// NewValueBytes returns a reply wrapping the given bytes without copying.
func NewValueBytes(res mc.Result, b []byte) *Reply {
	return NewValue(res, iobuf.New(b))
}

// NewValueString returns a reply carrying a copy of the given string.
func NewValueString(res mc.Result, s string) *Reply {
	return NewValue(res, iobuf.NewString(s))
}

// Result returns the outcome code, ResUnknown until first set.
func (r *Reply) Result() mc.Result { return r.result }

// SetResult overwrites the outcome code.
func (r *Reply) SetResult(res mc.Result) { r.result = res }

// HasValue returns whether a payload was explicitly set.
func (r *Reply) HasValue() bool { return r.value != nil }

// Value returns the payload buffer.  A reply without a payload yields an
// empty buffer constructed on demand, never nil.
func (r *Reply) Value() *iobuf.Buf {
	if r.value == nil {
		return &iobuf.Buf{}
	}
	return r.value
}

// ValueRangeSlow returns a flat view of the payload, coalescing chained
// segments on first use.
func (r *Reply) ValueRangeSlow() []byte {
	if r.value == nil {
		return nil
	}
	return r.value.Bytes()
}

// SetValue replaces the payload.  The reply takes ownership of the buffer.
func (r *Reply) SetValue(v *iobuf.Buf) {
	if v == nil {
		v = &iobuf.Buf{}
	}
	r.value = v
}

// SetValueBytes replaces the payload, wrapping b without copying.
func (r *Reply) SetValueBytes(b []byte) { r.SetValue(iobuf.New(b)) }

// SetValueString replaces the payload with a copy of s.
func (r *Reply) SetValueString(s string) { r.SetValue(iobuf.NewString(s)) }

// Destination returns the descriptor of the backend that produced this
// reply, nil if none was attached.
func (r *Reply) Destination() *ap.AccessPoint { return r.dest }

// SetDestination attaches the destination descriptor.  The reply shares the
// descriptor, it never owns or mutates it.
func (r *Reply) SetDestination(a *ap.AccessPoint) { r.dest = a }

func (r *Reply) Flags() uint64       { return r.flags }
func (r *Reply) SetFlags(f uint64)   { r.flags = f }
func (r *Reply) Exptime() uint32     { return r.exptime }
func (r *Reply) SetExptime(e uint32) { r.exptime = e }
func (r *Reply) Number() uint32      { return r.number }
func (r *Reply) SetNumber(n uint32)  { r.number = n }

func (r *Reply) LeaseToken() uint64      { return r.leaseToken }
func (r *Reply) SetLeaseToken(lt uint64) { r.leaseToken = lt }
func (r *Reply) Cas() uint64             { return r.cas }
func (r *Reply) SetCas(c uint64)         { r.cas = c }
func (r *Reply) Delta() uint64           { return r.delta }
func (r *Reply) SetDelta(d uint64)       { r.delta = d }

// AppSpecificErrorCode returns the application error code reported by the
// backend.
func (r *Reply) AppSpecificErrorCode() uint32        { return r.errCode }
func (r *Reply) SetAppSpecificErrorCode(code uint32) { r.errCode = code }

// IPVersion returns the IP version of the responding backend, 0 when the
// endpoint was never set.
func (r *Reply) IPVersion() uint8 {
	if r.ep == nil {
		return 0
	}
	return r.ep.version
}

// IPAddress returns the address of the responding backend, nil when the
// endpoint was never set.
func (r *Reply) IPAddress() net.IP {
	if r.ep == nil {
		return nil
	}
	return r.ep.addr
}

// SetIpAddress records the responding backend's endpoint, materializing the
// lazily-held storage.
func (r *Reply) SetIpAddress(addr net.IP, version uint8) {
	r.ep = &endpoint{addr: addr, version: version}
}

// SetDestructor attaches a foreign release hook invoked with ctx exactly
// once when the reply is released.  At most one hook may ever be attached;
// a second attachment is a programming error and panics.
func (r *Reply) SetDestructor(fn Destructor, ctx interface{}) {
	if r.hook != nil {
		panic("reply: destructor already set")
	}
	r.hook = &foreignHook{fn: fn, ctx: ctx}
}

// Release ends the reply's lifecycle, firing the foreign hook if one is
// attached.  Releasing twice is a programming error and panics: it indicates
// a double-free risk on the foreign resource.
func (r *Reply) Release() {
	if r.released {
		panic("reply: already released")
	}
	r.released = true
	if r.hook != nil {
		h := r.hook
		r.hook = nil
		h.fn(h.ctx)
	}
}

// Classification shorthands over the fixed taxonomy.

func (r *Reply) IsTko() bool            { return mc.IsTko(r.result) }
func (r *Reply) IsLocalError() bool     { return mc.IsLocalError(r.result) }
func (r *Reply) IsConnectError() bool   { return mc.IsConnectError(r.result) }
func (r *Reply) IsConnectTimeout() bool { return mc.IsConnectTimeout(r.result) }
func (r *Reply) IsDataTimeout() bool    { return mc.IsDataTimeout(r.result) }
func (r *Reply) IsRedirect() bool       { return mc.IsRedirect(r.result) }
func (r *Reply) IsHit() bool            { return mc.IsHit(r.result) }
func (r *Reply) IsMiss() bool           { return mc.IsMiss(r.result) }
func (r *Reply) IsHotMiss() bool        { return mc.IsHotMiss(r.result) }
func (r *Reply) IsStored() bool         { return mc.IsStored(r.result) }

// Classification shorthands over the installed policy table.

func (r *Reply) IsError() bool         { return current.IsError(r.result) }
func (r *Reply) IsFailoverError() bool { return current.IsFailoverError(r.result) }
func (r *Reply) IsSoftTkoError() bool  { return current.IsSoftTkoError(r.result) }
func (r *Reply) IsHardTkoError() bool  { return current.IsHardTkoError(r.result) }
