package mcrouter

import (
	"context"

	"github.com/filipenf/mcrouter/ap"
	"github.com/filipenf/mcrouter/reply"
)

// StoreOptions carries the client-supplied metadata of a store operation.
type StoreOptions struct {
	Flags   uint64
	Exptime uint32
}

// Transport is the interface to backend destinations.  Every call returns
// exactly one reply per destination, in destination order; backend and
// connection failures are representable outcomes carried as result codes on
// the replies, never as Go errors.
type Transport interface {
	Get(ctx context.Context, key []byte, dests ...*ap.AccessPoint) []*reply.Reply
	Gets(ctx context.Context, key []byte, dests ...*ap.AccessPoint) []*reply.Reply
	Set(ctx context.Context, key, value []byte, opts *StoreOptions, dests ...*ap.AccessPoint) []*reply.Reply
	Cas(ctx context.Context, key, value []byte, opts *StoreOptions, cas uint64, dests ...*ap.AccessPoint) []*reply.Reply
	Delete(ctx context.Context, key []byte, dests ...*ap.AccessPoint) []*reply.Reply
	Incr(ctx context.Context, key []byte, delta uint64, dests ...*ap.AccessPoint) []*reply.Reply
	Decr(ctx context.Context, key []byte, delta uint64, dests ...*ap.AccessPoint) []*reply.Reply
	Touch(ctx context.Context, key []byte, exptime uint32, dests ...*ap.AccessPoint) []*reply.Reply

	// Close releases cached backend connections.
	Close() error
}

// gatedTransport wraps a Transport with the tko gate: destinations currently
// in tko state are not contacted at all, a synthetic tko reply takes their
// slot.  Every real reply that does come back feeds the tracker.
type gatedTransport struct {
	remote  Transport
	tracker *TkoTracker
}

func newGatedTransport(remote Transport, tracker *TkoTracker) *gatedTransport {
	return &gatedTransport{remote: remote, tracker: tracker}
}

// gate partitions destinations into live ones and pre-filled tko slots.
func (gt *gatedTransport) gate(dests []*ap.AccessPoint) (live []*ap.AccessPoint, out []*reply.Reply, liveIdx []int) {
	out = make([]*reply.Reply, len(dests))
	for i, d := range dests {
		if gt.tracker.IsTko(d) {
			r := reply.Tko()
			r.SetDestination(d)
			out[i] = r
			continue
		}
		live = append(live, d)
		liveIdx = append(liveIdx, i)
	}
	return
}

// merge folds the live replies back into destination order and feeds the
// tracker.
func (gt *gatedTransport) merge(out []*reply.Reply, liveIdx []int, rs []*reply.Reply) []*reply.Reply {
	for i, r := range rs {
		gt.tracker.Observe(r)
		out[liveIdx[i]] = r
	}
	return out
}

func (gt *gatedTransport) Get(ctx context.Context, key []byte, dests ...*ap.AccessPoint) []*reply.Reply {
	live, out, idx := gt.gate(dests)
	if len(live) == 0 {
		return out
	}
	return gt.merge(out, idx, gt.remote.Get(ctx, key, live...))
}

func (gt *gatedTransport) Gets(ctx context.Context, key []byte, dests ...*ap.AccessPoint) []*reply.Reply {
	live, out, idx := gt.gate(dests)
	if len(live) == 0 {
		return out
	}
	return gt.merge(out, idx, gt.remote.Gets(ctx, key, live...))
}

func (gt *gatedTransport) Set(ctx context.Context, key, value []byte, opts *StoreOptions, dests ...*ap.AccessPoint) []*reply.Reply {
	live, out, idx := gt.gate(dests)
	if len(live) == 0 {
		return out
	}
	return gt.merge(out, idx, gt.remote.Set(ctx, key, value, opts, live...))
}

func (gt *gatedTransport) Cas(ctx context.Context, key, value []byte, opts *StoreOptions, cas uint64, dests ...*ap.AccessPoint) []*reply.Reply {
	live, out, idx := gt.gate(dests)
	if len(live) == 0 {
		return out
	}
	return gt.merge(out, idx, gt.remote.Cas(ctx, key, value, opts, cas, live...))
}

func (gt *gatedTransport) Delete(ctx context.Context, key []byte, dests ...*ap.AccessPoint) []*reply.Reply {
	live, out, idx := gt.gate(dests)
	if len(live) == 0 {
		return out
	}
	return gt.merge(out, idx, gt.remote.Delete(ctx, key, live...))
}

func (gt *gatedTransport) Incr(ctx context.Context, key []byte, delta uint64, dests ...*ap.AccessPoint) []*reply.Reply {
	live, out, idx := gt.gate(dests)
	if len(live) == 0 {
		return out
	}
	return gt.merge(out, idx, gt.remote.Incr(ctx, key, delta, live...))
}

func (gt *gatedTransport) Decr(ctx context.Context, key []byte, delta uint64, dests ...*ap.AccessPoint) []*reply.Reply {
	live, out, idx := gt.gate(dests)
	if len(live) == 0 {
		return out
	}
	return gt.merge(out, idx, gt.remote.Decr(ctx, key, delta, live...))
}

func (gt *gatedTransport) Touch(ctx context.Context, key []byte, exptime uint32, dests ...*ap.AccessPoint) []*reply.Reply {
	live, out, idx := gt.gate(dests)
	if len(live) == 0 {
		return out
	}
	return gt.merge(out, idx, gt.remote.Touch(ctx, key, exptime, live...))
}

func (gt *gatedTransport) Close() error {
	return gt.remote.Close()
}
