package reply

import "github.com/filipenf/mcrouter/mc"

// Policy supplies the higher-level classification sets layered on top of the
// fixed taxonomy in package mc.  The boundaries are deliberately data, not
// code: operators tune membership through config without touching the reply
// type.
type Policy struct {
	err      map[mc.Result]bool
	failover map[mc.Result]bool
	softTko  map[mc.Result]bool
	hardTko  map[mc.Result]bool
}

// NewPolicy builds a policy from explicit membership lists.
func NewPolicy(errs, failover, soft, hard []mc.Result) *Policy {
	return &Policy{
		err:      toSet(errs),
		failover: toSet(failover),
		softTko:  toSet(soft),
		hardTko:  toSet(hard),
	}
}

func toSet(rs []mc.Result) map[mc.Result]bool {
	m := make(map[mc.Result]bool, len(rs))
	for _, r := range rs {
		m[r] = true
	}
	return m
}

// DefaultPolicy returns the stock classification:
//
//   - error: every non-success outcome, unknown included since it can only be
//     observed on a reply that never received a real result.
//   - failover-eligible: errors where another destination could plausibly do
//     better.  local_error is excluded: the request was rejected before
//     transmission for a local reason.
//   - hard tko: no connection was ever established, the box is presumed down.
//   - soft tko: the box answered the dial but timed out, it may merely be
//     slow, so only repeated occurrences should trip it.
func DefaultPolicy() *Policy {
	return NewPolicy(
		[]mc.Result{
			mc.ResUnknown, mc.ResBusy, mc.ResTryAgain, mc.ResTko,
			mc.ResLocalError, mc.ResRemoteError, mc.ResConnectError,
			mc.ResConnectTimeout, mc.ResTimeout,
		},
		[]mc.Result{
			mc.ResTko, mc.ResConnectError, mc.ResConnectTimeout,
			mc.ResTimeout, mc.ResRemoteError, mc.ResBusy, mc.ResTryAgain,
		},
		[]mc.Result{mc.ResTimeout},
		[]mc.Result{mc.ResConnectError, mc.ResConnectTimeout},
	)
}

// IsError returns whether the result is any non-success outcome.
func (p *Policy) IsError(r mc.Result) bool { return p.err[r] }

// IsFailoverError returns whether the result is an error safe to retry
// against another destination.
func (p *Policy) IsFailoverError(r mc.Result) bool { return p.failover[r] }

// IsSoftTkoError returns whether the result should count toward tripping the
// destination after repeated failures.
func (p *Policy) IsSoftTkoError(r mc.Result) bool { return p.softTko[r] }

// IsHardTkoError returns whether the result should trip the destination
// immediately.
func (p *Policy) IsHardTkoError(r mc.Result) bool { return p.hardTko[r] }

// current is the process-wide policy consulted by Reply predicate methods.
// Replaced wholesale at startup, never mutated in place.
var current = DefaultPolicy()

// UsePolicy installs the policy consulted by Reply classification methods.
// Call during startup, before replies are in flight.
func UsePolicy(p *Policy) {
	if p != nil {
		current = p
	}
}
