// Package ap defines the access point descriptor identifying a backend
// destination.  Descriptors are immutable after construction and are shared
// freely: replies, trackers and transports all hold references to the same
// descriptor for a given destination.
package ap

import (
	"fmt"
	"net"
	"strconv"
)

// Protocol is the wire dialect spoken to the destination.
type Protocol uint8

const (
	ProtoAscii Protocol = iota
	ProtoBinary
)

func (p Protocol) String() string {
	if p == ProtoBinary {
		return "binary"
	}
	return "ascii"
}

// AccessPoint identifies a single backend destination.  Treat as read-only
// after construction.
type AccessPoint struct {
	host  string
	port  uint16
	proto Protocol
}

// New creates an access point for the given host and port.
func New(host string, port uint16, proto Protocol) *AccessPoint {
	return &AccessPoint{host: host, port: port, proto: proto}
}

// Parse creates an access point from a "host:port" string.
func Parse(hostport string, proto Protocol) (*AccessPoint, error) {
	host, ps, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, err
	}
	if host == "" {
		return nil, fmt.Errorf("invalid address: %s", hostport)
	}
	port, err := strconv.ParseUint(ps, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid port: %s", ps)
	}
	return &AccessPoint{host: host, port: uint16(port), proto: proto}, nil
}

func (a *AccessPoint) Host() string       { return a.host }
func (a *AccessPoint) Port() uint16       { return a.port }
func (a *AccessPoint) Protocol() Protocol { return a.proto }

// String renders the destination as host:port.
func (a *AccessPoint) String() string {
	if a == nil {
		return "<nil>"
	}
	return net.JoinHostPort(a.host, strconv.Itoa(int(a.port)))
}

// Equal returns whether two descriptors identify the same destination.
func (a *AccessPoint) Equal(o *AccessPoint) bool {
	if a == nil || o == nil {
		return a == o
	}
	return a.host == o.host && a.port == o.port && a.proto == o.proto
}
