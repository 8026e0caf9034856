package mc

import "net"

// Msg is the legacy wire-message record exchanged with the protocol
// parser/encoder.  It is a plain operation-tagged struct: the parser that
// produces it and the encoder that consumes it live outside this module.
//
// A Msg obtained from Reply.DependentMsg aliases buffers owned by the source
// reply and is only valid while that reply is alive and unmodified.  A Msg
// obtained from Reply.ReleasedMsg owns its buffers outright.
type Msg struct {
	Op     Op
	Result Result

	Flags      uint64
	Exptime    uint32
	Number     uint32
	LeaseToken uint64
	Cas        uint64
	Delta      uint64
	ErrCode    uint32

	IPVersion uint8
	IPAddress net.IP

	Key   []byte
	Value []byte
}
