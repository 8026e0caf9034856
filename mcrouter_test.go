package mcrouter

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filipenf/mcrouter/ap"
	"github.com/filipenf/mcrouter/asynclog"
	"github.com/filipenf/mcrouter/mc"
	"github.com/filipenf/mcrouter/reply"
)

// mockTransport answers every operation with a per-destination canned result.
type mockTransport struct {
	mu      sync.Mutex
	results map[string]mc.Result
	calls   map[string]int
}

func newMockTransport(results map[string]mc.Result) *mockTransport {
	return &mockTransport{results: results, calls: make(map[string]int)}
}

func (m *mockTransport) replies(dests []*ap.AccessPoint) []*reply.Reply {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*reply.Reply, len(dests))
	for i, d := range dests {
		res, ok := m.results[d.String()]
		if !ok {
			res = mc.ResFound
		}
		m.calls[d.String()]++

		r := reply.NewResult(res)
		r.SetDestination(d)
		out[i] = r
	}
	return out
}

func (m *mockTransport) callCount(d *ap.AccessPoint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[d.String()]
}

func (m *mockTransport) Get(_ context.Context, _ []byte, dests ...*ap.AccessPoint) []*reply.Reply {
	return m.replies(dests)
}

func (m *mockTransport) Gets(_ context.Context, _ []byte, dests ...*ap.AccessPoint) []*reply.Reply {
	return m.replies(dests)
}

func (m *mockTransport) Set(_ context.Context, _, _ []byte, _ *StoreOptions, dests ...*ap.AccessPoint) []*reply.Reply {
	return m.replies(dests)
}

func (m *mockTransport) Cas(_ context.Context, _, _ []byte, _ *StoreOptions, _ uint64, dests ...*ap.AccessPoint) []*reply.Reply {
	return m.replies(dests)
}

func (m *mockTransport) Delete(_ context.Context, _ []byte, dests ...*ap.AccessPoint) []*reply.Reply {
	return m.replies(dests)
}

func (m *mockTransport) Incr(_ context.Context, _ []byte, _ uint64, dests ...*ap.AccessPoint) []*reply.Reply {
	return m.replies(dests)
}

func (m *mockTransport) Decr(_ context.Context, _ []byte, _ uint64, dests ...*ap.AccessPoint) []*reply.Reply {
	return m.replies(dests)
}

func (m *mockTransport) Touch(_ context.Context, _ []byte, _ uint32, dests ...*ap.AccessPoint) []*reply.Reply {
	return m.replies(dests)
}

func (m *mockTransport) Close() error { return nil }

func newTestProxy(t *testing.T, conf *Config, results map[string]mc.Result) (*Proxy, *mockTransport) {
	t.Helper()
	mt := newMockTransport(results)
	p, err := NewProxy(conf, mt)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, mt
}

func poolConfig(dests ...string) *Config {
	c := DefaultConfig()
	c.Destinations = dests
	return c
}

func TestProxyGetReduces(t *testing.T) {
	conf := poolConfig("10.0.0.1:11211", "10.0.0.2:11211")
	p, _ := newTestProxy(t, conf, map[string]mc.Result{
		"10.0.0.1:11211": mc.ResFound,
		"10.0.0.2:11211": mc.ResTimeout,
	})

	r := p.Get(context.Background(), []byte("k"))
	assert.Equal(t, mc.ResTimeout, r.Result())
	assert.Equal(t, "10.0.0.2:11211", r.Destination().String())
}

func TestProxyGetAllHits(t *testing.T) {
	conf := poolConfig("10.0.0.1:11211", "10.0.0.2:11211")
	p, _ := newTestProxy(t, conf, nil)

	r := p.Get(context.Background(), []byte("k"))
	assert.True(t, r.IsHit())
	// stable reduction keeps the first destination's reply
	assert.Equal(t, "10.0.0.1:11211", r.Destination().String())
}

func TestProxyNoDestinations(t *testing.T) {
	p, _ := newTestProxy(t, DefaultConfig(), nil)
	r := p.Get(context.Background(), []byte("k"))
	assert.True(t, r.IsLocalError())
}

func TestProxySet(t *testing.T) {
	conf := poolConfig("10.0.0.1:11211")
	p, _ := newTestProxy(t, conf, map[string]mc.Result{
		"10.0.0.1:11211": mc.ResStored,
	})

	r := p.Set(context.Background(), []byte("k"), []byte("v"), nil)
	assert.True(t, r.IsStored())
}

func TestGateFabricatesTko(t *testing.T) {
	conf := poolConfig("10.0.0.1:11211", "10.0.0.2:11211")
	p, mt := newTestProxy(t, conf, map[string]mc.Result{
		"10.0.0.1:11211": mc.ResConnectError,
	})

	bad, _ := ap.Parse("10.0.0.1:11211", ap.ProtoAscii)

	// first round trips the destination
	r := p.Get(context.Background(), []byte("k"))
	assert.Equal(t, mc.ResConnectError, r.Result())
	require.True(t, p.Tracker().IsTko(bad))
	assert.Equal(t, 1, mt.callCount(bad))

	// second round: the gate answers for it, the backend is not contacted
	r = p.Get(context.Background(), []byte("k"))
	assert.Equal(t, mc.ResTko, r.Result())
	assert.Equal(t, "10.0.0.1:11211", r.Destination().String())
	assert.Equal(t, 1, mt.callCount(bad))
}

func TestGetFailover(t *testing.T) {
	conf := poolConfig("10.0.0.1:11211", "10.0.0.2:11211")
	p, mt := newTestProxy(t, conf, map[string]mc.Result{
		"10.0.0.1:11211": mc.ResTimeout,
		"10.0.0.2:11211": mc.ResFound,
	})

	r := p.GetFailover(context.Background(), []byte("k"))
	assert.Equal(t, mc.ResFound, r.Result())
	assert.Equal(t, "10.0.0.2:11211", r.Destination().String())

	a, _ := ap.Parse("10.0.0.1:11211", ap.ProtoAscii)
	b, _ := ap.Parse("10.0.0.2:11211", ap.ProtoAscii)
	assert.Equal(t, 1, mt.callCount(a))
	assert.Equal(t, 1, mt.callCount(b))
}

func TestGetFailoverExhausted(t *testing.T) {
	conf := poolConfig("10.0.0.1:11211", "10.0.0.2:11211")
	p, _ := newTestProxy(t, conf, map[string]mc.Result{
		"10.0.0.1:11211": mc.ResTimeout,
		"10.0.0.2:11211": mc.ResConnectError,
	})

	r := p.GetFailover(context.Background(), []byte("k"))
	assert.Equal(t, mc.ResConnectError, r.Result())
}

func TestGetFailoverLocalErrorStops(t *testing.T) {
	conf := poolConfig("10.0.0.1:11211", "10.0.0.2:11211")
	p, mt := newTestProxy(t, conf, map[string]mc.Result{
		"10.0.0.1:11211": mc.ResLocalError,
	})

	// local errors are not failover eligible: no second destination attempt
	r := p.GetFailover(context.Background(), []byte("k"))
	assert.Equal(t, mc.ResLocalError, r.Result())

	b, _ := ap.Parse("10.0.0.2:11211", ap.ProtoAscii)
	assert.Equal(t, 0, mt.callCount(b))
}

func TestDeleteSpooledOnFailure(t *testing.T) {
	conf := poolConfig("10.0.0.1:11211")
	conf.AsyncLogDir = t.TempDir()
	p, _ := newTestProxy(t, conf, map[string]mc.Result{
		"10.0.0.1:11211": mc.ResConnectError,
	})

	// the failed delete is queued for replay and acknowledged with the
	// operation's synthetic default
	r := p.Delete(context.Background(), []byte("doomed"))
	assert.Equal(t, mc.ResDeleted, r.Result())

	n, err := p.AsyncLog().Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var keys []string
	require.NoError(t, p.AsyncLog().Replay(func(rec *asynclog.Record) error {
		keys = append(keys, string(rec.Key))
		return nil
	}))
	assert.Equal(t, []string{"doomed"}, keys)
}

func TestDeleteNoSpool(t *testing.T) {
	conf := poolConfig("10.0.0.1:11211")
	p, _ := newTestProxy(t, conf, map[string]mc.Result{
		"10.0.0.1:11211": mc.ResConnectError,
	})

	r := p.Delete(context.Background(), []byte("k"))
	assert.Equal(t, mc.ResConnectError, r.Result())
	assert.Nil(t, p.AsyncLog())
}

func TestDeleteSuccessNotSpooled(t *testing.T) {
	conf := poolConfig("10.0.0.1:11211")
	conf.AsyncLogDir = t.TempDir()
	p, _ := newTestProxy(t, conf, map[string]mc.Result{
		"10.0.0.1:11211": mc.ResDeleted,
	})

	r := p.Delete(context.Background(), []byte("k"))
	assert.Equal(t, mc.ResDeleted, r.Result())

	n, err := p.AsyncLog().Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProxyGetsAndCas(t *testing.T) {
	conf := poolConfig("10.0.0.1:11211")
	p, _ := newTestProxy(t, conf, map[string]mc.Result{
		"10.0.0.1:11211": mc.ResExists,
	})

	ctx := context.Background()
	assert.Equal(t, mc.ResExists, p.Gets(ctx, []byte("k")).Result())

	// exists is not an error: no failover, no tko, just report it
	r := p.Cas(ctx, []byte("k"), []byte("v"), nil, 7)
	assert.Equal(t, mc.ResExists, r.Result())
	assert.False(t, r.IsError())
}

func TestProxyArithAndTouch(t *testing.T) {
	conf := poolConfig("10.0.0.1:11211")
	p, _ := newTestProxy(t, conf, map[string]mc.Result{
		"10.0.0.1:11211": mc.ResStored,
	})

	ctx := context.Background()
	assert.True(t, p.Incr(ctx, []byte("n"), 1).IsStored())
	assert.True(t, p.Decr(ctx, []byte("n"), 1).IsStored())
	assert.Equal(t, mc.ResStored, p.Touch(ctx, []byte("n"), 60).Result())
}
