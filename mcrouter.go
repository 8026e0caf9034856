// Package mcrouter is the routing core of a memcached proxy: it fans
// operations out to backend destinations, represents each backend's outcome
// as a uniform reply, classifies outcomes for retry/failover and tko
// decisions, and reduces fan-out replies to the one the client sees.
package mcrouter

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/filipenf/mcrouter/ap"
	"github.com/filipenf/mcrouter/asynclog"
	"github.com/filipenf/mcrouter/mc"
	"github.com/filipenf/mcrouter/reply"
)

// ErrNoDestinations is returned when an operation has no destination to go to.
var ErrNoDestinations = errors.New("no destinations")

// Proxy is the core engine.  It owns the tko tracker, the gated transport
// and the delete spool.  It never decides which destinations to contact:
// callers pass them, or the configured full pool is used.
type Proxy struct {
	conf  *Config
	pool  []*ap.AccessPoint
	track *TkoTracker
	trans Transport
	alog  *asynclog.Log

	log *logrus.Entry
}

// NewProxy instantiates a proxy over the given backend transport.
func NewProxy(conf *Config, trans Transport) (*Proxy, error) {
	pol, err := conf.Policy.Policy()
	if err != nil {
		return nil, err
	}
	reply.UsePolicy(pol)

	pool, err := conf.AccessPoints()
	if err != nil {
		return nil, err
	}

	p := &Proxy{
		conf:  conf,
		pool:  pool,
		track: NewTkoTracker(conf.TkoThreshold),
		log:   logrus.WithField("component", "proxy"),
	}
	p.trans = newGatedTransport(trans, p.track)

	if conf.AsyncLogDir != "" {
		p.alog = asynclog.New(conf.AsyncLogDir, "deletes")
		if err = p.alog.Open(0600); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Close releases the transport connections and the delete spool.
func (p *Proxy) Close() error {
	err := p.trans.Close()
	if p.alog != nil {
		if er := p.alog.Close(); err == nil {
			err = er
		}
	}
	return err
}

// Tracker exposes the tko tracker, e.g. for the admin surface.
func (p *Proxy) Tracker() *TkoTracker { return p.track }

// AsyncLog returns the delete spool, nil when disabled.
func (p *Proxy) AsyncLog() *asynclog.Log { return p.alog }

func (p *Proxy) destinations(dests []*ap.AccessPoint) []*ap.AccessPoint {
	if len(dests) > 0 {
		return dests
	}
	return p.pool
}

func (p *Proxy) logOp(id string, op mc.Op, key []byte, r *reply.Reply) {
	p.log.WithFields(logrus.Fields{
		"req":    id,
		"op":     op.String(),
		"key":    string(key),
		"result": r.Result().String(),
		"dest":   r.Destination().String(),
	}).Debug("reduced")
}

// Get fans the read out to the destinations and returns the reduced reply.
func (p *Proxy) Get(ctx context.Context, key []byte, dests ...*ap.AccessPoint) *reply.Reply {
	ds := p.destinations(dests)
	if len(ds) == 0 {
		return reply.Error(ErrNoDestinations.Error())
	}

	id := uuid.NewString()
	red := reply.Reduce(p.trans.Get(ctx, key, ds...))
	p.logOp(id, mc.OpGet, key, red)
	return red
}

// GetFailover tries destinations one at a time, failing over on replies the
// policy deems safe to retry elsewhere.  The last reply is returned when all
// destinations are exhausted.
func (p *Proxy) GetFailover(ctx context.Context, key []byte, dests ...*ap.AccessPoint) *reply.Reply {
	ds := p.destinations(dests)
	if len(ds) == 0 {
		return reply.Error(ErrNoDestinations.Error())
	}

	id := uuid.NewString()
	var last *reply.Reply
	for _, d := range ds {
		last = p.trans.Get(ctx, key, d)[0]
		if !last.IsFailoverError() {
			break
		}
		p.log.WithFields(logrus.Fields{
			"req":    id,
			"dest":   d.String(),
			"result": last.Result().String(),
		}).Debug("failover")
	}
	p.logOp(id, mc.OpGet, key, last)
	return last
}

// Gets fans the read out like Get, additionally retrieving the cas unique of
// each value.
func (p *Proxy) Gets(ctx context.Context, key []byte, dests ...*ap.AccessPoint) *reply.Reply {
	ds := p.destinations(dests)
	if len(ds) == 0 {
		return reply.Error(ErrNoDestinations.Error())
	}

	id := uuid.NewString()
	red := reply.Reduce(p.trans.Gets(ctx, key, ds...))
	p.logOp(id, mc.OpGets, key, red)
	return red
}

// Set fans the write out to the destinations and returns the reduced reply.
func (p *Proxy) Set(ctx context.Context, key, value []byte, opts *StoreOptions, dests ...*ap.AccessPoint) *reply.Reply {
	ds := p.destinations(dests)
	if len(ds) == 0 {
		return reply.Error(ErrNoDestinations.Error())
	}

	id := uuid.NewString()
	red := reply.Reduce(p.trans.Set(ctx, key, value, opts, ds...))
	p.logOp(id, mc.OpSet, key, red)
	return red
}

// Cas fans the compare-and-store out and returns the reduced reply.  An
// exists result means the value changed under us since the matching Gets.
func (p *Proxy) Cas(ctx context.Context, key, value []byte, opts *StoreOptions, cas uint64, dests ...*ap.AccessPoint) *reply.Reply {
	ds := p.destinations(dests)
	if len(ds) == 0 {
		return reply.Error(ErrNoDestinations.Error())
	}

	id := uuid.NewString()
	red := reply.Reduce(p.trans.Cas(ctx, key, value, opts, cas, ds...))
	p.logOp(id, mc.OpCas, key, red)
	return red
}

// Delete fans the delete out.  A failed delete is spooled for replay and
// acknowledged with the operation's synthetic default reply so the client
// sees the delete as accepted.
func (p *Proxy) Delete(ctx context.Context, key []byte, dests ...*ap.AccessPoint) *reply.Reply {
	ds := p.destinations(dests)
	if len(ds) == 0 {
		return reply.Error(ErrNoDestinations.Error())
	}

	id := uuid.NewString()
	red := reply.Reduce(p.trans.Delete(ctx, key, ds...))

	if red.IsError() && p.alog != nil {
		if err := p.alog.Append(mc.OpDelete.String(), key, 0); err != nil {
			p.log.WithFields(logrus.Fields{"req": id, "key": string(key)}).
				WithError(err).Error("asynclog append failed")
		} else {
			p.log.WithFields(logrus.Fields{"req": id, "key": string(key)}).
				Info("delete spooled for replay")
			red = reply.Default(mc.OpDelete)
		}
	}

	p.logOp(id, mc.OpDelete, key, red)
	return red
}

// Incr fans the increment out and returns the reduced reply.
func (p *Proxy) Incr(ctx context.Context, key []byte, delta uint64, dests ...*ap.AccessPoint) *reply.Reply {
	ds := p.destinations(dests)
	if len(ds) == 0 {
		return reply.Error(ErrNoDestinations.Error())
	}

	id := uuid.NewString()
	red := reply.Reduce(p.trans.Incr(ctx, key, delta, ds...))
	p.logOp(id, mc.OpIncr, key, red)
	return red
}

// Decr fans the decrement out and returns the reduced reply.
func (p *Proxy) Decr(ctx context.Context, key []byte, delta uint64, dests ...*ap.AccessPoint) *reply.Reply {
	ds := p.destinations(dests)
	if len(ds) == 0 {
		return reply.Error(ErrNoDestinations.Error())
	}

	id := uuid.NewString()
	red := reply.Reduce(p.trans.Decr(ctx, key, delta, ds...))
	p.logOp(id, mc.OpDecr, key, red)
	return red
}

// Touch fans the touch out and returns the reduced reply.
func (p *Proxy) Touch(ctx context.Context, key []byte, exptime uint32, dests ...*ap.AccessPoint) *reply.Reply {
	ds := p.destinations(dests)
	if len(ds) == 0 {
		return reply.Error(ErrNoDestinations.Error())
	}

	id := uuid.NewString()
	red := reply.Reduce(p.trans.Touch(ctx, key, exptime, ds...))
	p.logOp(id, mc.OpTouch, key, red)
	return red
}
