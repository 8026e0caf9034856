package mcrouter

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/filipenf/mcrouter/ap"
	"github.com/filipenf/mcrouter/mc"
	"github.com/filipenf/mcrouter/reply"
)

// maxValueSize bounds the value size a backend may announce on a VALUE
// line, well above memcached's default 1m item limit.  Anything outside the
// bound is a protocol violation, not a value to allocate for.
const maxValueSize = 64 << 20

type outConn struct {
	host string
	conn net.Conn
	br   *bufio.Reader

	mu sync.Mutex // serializes round trips on the wire
}

// AsciiTransport talks the memcached text protocol to backends.  Outbound
// connections are cached per destination and reaped on any error.  Outcomes
// map onto result codes: a refused dial is connect_error, a dial timeout is
// connect_timeout, a timeout on an established connection is timeout (the
// data may have reached the server), SERVER_ERROR lines are remote_error and
// CLIENT_ERROR/ERROR lines are local_error.
type AsciiTransport struct {
	timeouts *NetTimeouts

	clock sync.Mutex          // outbound connection lock
	out   map[string]*outConn // outbound connections
}

// NewAsciiTransport instantiates a transport with the given timeouts.
func NewAsciiTransport(timeouts *NetTimeouts) *AsciiTransport {
	if timeouts == nil {
		timeouts = DefaultNetTimeouts()
	}
	return &AsciiTransport{
		timeouts: timeouts,
		out:      make(map[string]*outConn),
	}
}

// getConn returns a cached or fresh connection.  On dial failure it returns
// a classified reply instead.
func (t *AsciiTransport) getConn(a *ap.AccessPoint) (*outConn, *reply.Reply) {
	host := a.String()

	t.clock.Lock()
	if oc, ok := t.out[host]; ok {
		t.clock.Unlock()
		return oc, nil
	}
	t.clock.Unlock()

	conn, err := net.DialTimeout("tcp", host, t.timeouts.Dial)
	if err != nil {
		res := mc.ResConnectError
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			res = mc.ResConnectTimeout
		}
		return nil, reply.NewValueString(res, err.Error())
	}

	oc := &outConn{host: host, conn: conn, br: bufio.NewReader(conn)}

	t.clock.Lock()
	if cur, ok := t.out[host]; ok {
		// another goroutine dialed the same host first; use its connection
		t.clock.Unlock()
		conn.Close()
		return cur, nil
	}
	t.out[host] = oc
	t.clock.Unlock()

	return oc, nil
}

func (t *AsciiTransport) reapConn(oc *outConn) {
	t.clock.Lock()
	if c, ok := t.out[oc.host]; ok && c == oc {
		delete(t.out, oc.host)
	}
	t.clock.Unlock()
	oc.conn.Close()
}

// Close releases all cached connections.
func (t *AsciiTransport) Close() error {
	t.clock.Lock()
	defer t.clock.Unlock()
	for h, oc := range t.out {
		oc.conn.Close()
		delete(t.out, h)
	}
	return nil
}

// classifyConnErr maps an error on an established connection.
func classifyConnErr(err error) *reply.Reply {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return reply.NewValueString(mc.ResTimeout, err.Error())
	}
	return reply.NewValueString(mc.ResRemoteError, err.Error())
}

// attach stamps destination identity and endpoint info onto a reply.
func attach(r *reply.Reply, a *ap.AccessPoint, conn net.Conn) *reply.Reply {
	r.SetDestination(a)
	if conn != nil {
		if ta, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
			ver := uint8(6)
			if ta.IP.To4() != nil {
				ver = 4
			}
			r.SetIpAddress(ta.IP, ver)
		}
	}
	return r
}

// roundTrip sends one request line (plus optional data block already in req)
// and parses the response with the supplied parser.  The parser returns a
// reply for protocol-level outcomes; transport errors are classified here.
func (t *AsciiTransport) roundTrip(ctx context.Context, a *ap.AccessPoint, req []byte, parse func(*bufio.Reader) (*reply.Reply, error)) *reply.Reply {
	if err := ctx.Err(); err != nil {
		return attach(reply.NewValueString(mc.ResLocalError, err.Error()), a, nil)
	}

	oc, rep := t.getConn(a)
	if rep != nil {
		return attach(rep, a, nil)
	}

	// one request/response at a time per connection; concurrent callers
	// would otherwise interleave writes and race on the reader
	oc.mu.Lock()
	defer oc.mu.Unlock()

	oc.conn.SetWriteDeadline(deadline(t.timeouts.Write))
	if _, err := oc.conn.Write(req); err != nil {
		t.reapConn(oc)
		return attach(classifyConnErr(err), a, nil)
	}

	oc.conn.SetReadDeadline(deadline(t.timeouts.Read))
	rep, err := parse(oc.br)
	if err != nil {
		t.reapConn(oc)
		return attach(classifyConnErr(err), a, nil)
	}
	return attach(rep, a, oc.conn)
}

// serverReply maps a protocol status line that any operation may produce.
// The second return is false if the line is not a generic status.
func serverReply(line []byte) (*reply.Reply, bool) {
	switch {
	case bytes.HasPrefix(line, []byte("SERVER_ERROR")):
		return reply.NewValueBytes(mc.ResRemoteError, trimPrefixSpace(line, "SERVER_ERROR")), true
	case bytes.HasPrefix(line, []byte("CLIENT_ERROR")):
		return reply.NewValueBytes(mc.ResLocalError, trimPrefixSpace(line, "CLIENT_ERROR")), true
	case bytes.Equal(line, []byte("ERROR")):
		return reply.NewResult(mc.ResLocalError), true
	case bytes.Equal(line, []byte("BUSY")):
		return reply.NewResult(mc.ResBusy), true
	}
	return nil, false
}

func trimPrefixSpace(line []byte, prefix string) []byte {
	b := bytes.TrimPrefix(line, []byte(prefix))
	return bytes.TrimLeft(b, " ")
}

func readLine(br *bufio.Reader) ([]byte, error) {
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(line, "\r\n"), nil
}

func deadline(d time.Duration) time.Time {
	return time.Now().Add(d)
}

func (t *AsciiTransport) Get(ctx context.Context, key []byte, dests ...*ap.AccessPoint) []*reply.Reply {
	req := []byte(fmt.Sprintf("get %s\r\n", key))
	out := make([]*reply.Reply, len(dests))
	for i, a := range dests {
		out[i] = t.roundTrip(ctx, a, req, parseGet)
	}
	return out
}

// Gets retrieves the value together with its cas unique.
func (t *AsciiTransport) Gets(ctx context.Context, key []byte, dests ...*ap.AccessPoint) []*reply.Reply {
	req := []byte(fmt.Sprintf("gets %s\r\n", key))
	out := make([]*reply.Reply, len(dests))
	for i, a := range dests {
		out[i] = t.roundTrip(ctx, a, req, parseGet)
	}
	return out
}

func parseGet(br *bufio.Reader) (*reply.Reply, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, err
	}
	if r, ok := serverReply(line); ok {
		return r, nil
	}
	if bytes.Equal(line, []byte("END")) {
		return reply.NewResult(mc.ResNotFound), nil
	}

	// VALUE <key> <flags> <bytes> [<cas unique>]
	fields := bytes.Fields(line)
	if len(fields) < 4 || !bytes.Equal(fields[0], []byte("VALUE")) {
		return nil, fmt.Errorf("unexpected line: %q", line)
	}
	flags, err := strconv.ParseUint(string(fields[2]), 10, 64)
	if err != nil {
		return nil, err
	}
	size, err := strconv.Atoi(string(fields[3]))
	if err != nil {
		return nil, err
	}
	if size < 0 || size > maxValueSize {
		return nil, fmt.Errorf("invalid value size: %d", size)
	}
	var cas uint64
	if len(fields) > 4 {
		if cas, err = strconv.ParseUint(string(fields[4]), 10, 64); err != nil {
			return nil, err
		}
	}

	data := make([]byte, size+2) // trailing \r\n
	if _, err = io.ReadFull(br, data); err != nil {
		return nil, err
	}
	if end, er := readLine(br); er != nil {
		return nil, er
	} else if !bytes.Equal(end, []byte("END")) {
		return nil, fmt.Errorf("missing END, got %q", end)
	}

	r := reply.NewValueBytes(mc.ResFound, data[:size])
	r.SetFlags(flags)
	r.SetCas(cas)
	return r, nil
}

func (t *AsciiTransport) Set(ctx context.Context, key, value []byte, opts *StoreOptions, dests ...*ap.AccessPoint) []*reply.Reply {
	if opts == nil {
		opts = &StoreOptions{}
	}
	req := []byte(fmt.Sprintf("set %s %d %d %d\r\n", key, opts.Flags, opts.Exptime, len(value)))
	req = append(req, value...)
	req = append(req, '\r', '\n')

	out := make([]*reply.Reply, len(dests))
	for i, a := range dests {
		out[i] = t.roundTrip(ctx, a, req, parseStore)
	}
	return out
}

func parseStore(br *bufio.Reader) (*reply.Reply, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, err
	}
	if r, ok := serverReply(line); ok {
		return r, nil
	}
	switch string(line) {
	case "STORED":
		return reply.NewResult(mc.ResStored), nil
	case "NOT_STORED":
		return reply.NewResult(mc.ResNotStored), nil
	case "EXISTS":
		return reply.NewResult(mc.ResExists), nil
	case "NOT_FOUND":
		return reply.NewResult(mc.ResNotFound), nil
	}
	return nil, fmt.Errorf("unexpected line: %q", line)
}

// Cas stores the value only if it is unchanged since the matching Gets.
func (t *AsciiTransport) Cas(ctx context.Context, key, value []byte, opts *StoreOptions, cas uint64, dests ...*ap.AccessPoint) []*reply.Reply {
	if opts == nil {
		opts = &StoreOptions{}
	}
	req := []byte(fmt.Sprintf("cas %s %d %d %d %d\r\n", key, opts.Flags, opts.Exptime, len(value), cas))
	req = append(req, value...)
	req = append(req, '\r', '\n')

	out := make([]*reply.Reply, len(dests))
	for i, a := range dests {
		out[i] = t.roundTrip(ctx, a, req, parseStore)
	}
	return out
}

func (t *AsciiTransport) Delete(ctx context.Context, key []byte, dests ...*ap.AccessPoint) []*reply.Reply {
	req := []byte(fmt.Sprintf("delete %s\r\n", key))
	out := make([]*reply.Reply, len(dests))
	for i, a := range dests {
		out[i] = t.roundTrip(ctx, a, req, parseDelete)
	}
	return out
}

func parseDelete(br *bufio.Reader) (*reply.Reply, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, err
	}
	if r, ok := serverReply(line); ok {
		return r, nil
	}
	switch string(line) {
	case "DELETED":
		return reply.NewResult(mc.ResDeleted), nil
	case "NOT_FOUND":
		return reply.NewResult(mc.ResNotFound), nil
	}
	return nil, fmt.Errorf("unexpected line: %q", line)
}

func (t *AsciiTransport) Incr(ctx context.Context, key []byte, delta uint64, dests ...*ap.AccessPoint) []*reply.Reply {
	return t.arith(ctx, "incr", key, delta, dests)
}

func (t *AsciiTransport) Decr(ctx context.Context, key []byte, delta uint64, dests ...*ap.AccessPoint) []*reply.Reply {
	return t.arith(ctx, "decr", key, delta, dests)
}

func (t *AsciiTransport) arith(ctx context.Context, verb string, key []byte, delta uint64, dests []*ap.AccessPoint) []*reply.Reply {
	req := []byte(fmt.Sprintf("%s %s %d\r\n", verb, key, delta))
	out := make([]*reply.Reply, len(dests))
	for i, a := range dests {
		out[i] = t.roundTrip(ctx, a, req, parseArith)
	}
	return out
}

func parseArith(br *bufio.Reader) (*reply.Reply, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, err
	}
	if r, ok := serverReply(line); ok {
		return r, nil
	}
	if bytes.Equal(line, []byte("NOT_FOUND")) {
		return reply.NewResult(mc.ResNotFound), nil
	}

	v, err := strconv.ParseUint(string(line), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("unexpected line: %q", line)
	}
	r := reply.NewResult(mc.ResStored)
	r.SetDelta(v)
	return r, nil
}

func (t *AsciiTransport) Touch(ctx context.Context, key []byte, exptime uint32, dests ...*ap.AccessPoint) []*reply.Reply {
	req := []byte(fmt.Sprintf("touch %s %d\r\n", key, exptime))
	out := make([]*reply.Reply, len(dests))
	for i, a := range dests {
		out[i] = t.roundTrip(ctx, a, req, parseTouch)
	}
	return out
}

func parseTouch(br *bufio.Reader) (*reply.Reply, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, err
	}
	if r, ok := serverReply(line); ok {
		return r, nil
	}
	switch string(line) {
	case "TOUCHED":
		return reply.NewResult(mc.ResTouched), nil
	case "NOT_FOUND":
		return reply.NewResult(mc.ResNotFound), nil
	}
	return nil, fmt.Errorf("unexpected line: %q", line)
}
