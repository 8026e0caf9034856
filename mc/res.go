package mc

// Result is the outcome of an operation against a single destination. It is
// produced either by a backend response or synthesized by routing logic, and
// is immutable once produced.
type Result uint8

const (
	// ResUnknown is the zero value of a reply that was never given a result.
	ResUnknown Result = iota

	ResFound
	ResFoundStale
	ResNotFound
	ResNotFoundHot
	ResDeleted
	ResTouched
	ResStored
	ResStaleStored
	ResNotStored
	ResExists

	// ResBusy and ResTryAgain are redirects: the server is up but does not
	// want to answer right now.
	ResBusy
	ResTryAgain

	// ResTko means routing logic never attempted the send because the
	// destination is presumed down.
	ResTko
	ResLocalError
	ResRemoteError
	ResConnectError
	ResConnectTimeout
	ResTimeout
)

var resStrings = map[Result]string{
	ResUnknown:        "unknown",
	ResFound:          "found",
	ResFoundStale:     "found_stale",
	ResNotFound:       "notfound",
	ResNotFoundHot:    "notfound_hot",
	ResDeleted:        "deleted",
	ResTouched:        "touched",
	ResStored:         "stored",
	ResStaleStored:    "stale_stored",
	ResNotStored:      "notstored",
	ResExists:         "exists",
	ResBusy:           "busy",
	ResTryAgain:       "try_again",
	ResTko:            "tko",
	ResLocalError:     "local_error",
	ResRemoteError:    "remote_error",
	ResConnectError:   "connect_error",
	ResConnectTimeout: "connect_timeout",
	ResTimeout:        "timeout",
}

func (r Result) String() string {
	if s, ok := resStrings[r]; ok {
		return s
	}
	return "invalid"
}

// ParseResult returns the Result for its string form.  Used when loading
// policy overrides from config.
func ParseResult(s string) (Result, bool) {
	for r, rs := range resStrings {
		if rs == s {
			return r, true
		}
	}
	return ResUnknown, false
}

// IsTko returns whether routing decided not to even attempt the send because
// the destination was marked down.  A tko result is always an error result.
func IsTko(r Result) bool {
	return r == ResTko
}

// IsLocalError returns whether the request was rejected before transmission
// e.g. it was invalid or hit a per-destination rate limit.
func IsLocalError(r Result) bool {
	return r == ResLocalError
}

// IsConnectError returns whether the connection attempt was refused.
func IsConnectError(r Result) bool {
	return r == ResConnectError
}

// IsConnectTimeout returns whether the connection attempt itself timed out.
// Always safe to retry: no data could have reached the server.
func IsConnectTimeout(r Result) bool {
	return r == ResConnectTimeout
}

// IsDataTimeout returns whether a timeout or remote failure occurred on an
// established connection.  Not safe to blindly retry writes: the data may
// have reached the server.
func IsDataTimeout(r Result) bool {
	return r == ResTimeout || r == ResRemoteError
}

// IsRedirect returns whether the server is up but asked us to come back later.
func IsRedirect(r Result) bool {
	return r == ResBusy || r == ResTryAgain
}

// IsHit returns whether the data was found.
func IsHit(r Result) bool {
	return r == ResDeleted || r == ResFound || r == ResTouched
}

// IsMiss returns whether the data was not found with no errors.
func IsMiss(r Result) bool {
	return r == ResNotFound
}

// IsHotMiss returns whether this was a lease hot miss.
func IsHotMiss(r Result) bool {
	return r == ResFoundStale || r == ResNotFoundHot
}

// IsStored returns whether the data was stored.
func IsStored(r Result) bool {
	return r == ResStored || r == ResStaleStored
}
