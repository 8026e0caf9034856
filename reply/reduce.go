package reply

import "github.com/filipenf/mcrouter/mc"

// Severity ordering used to pick the representative reply of a fan-out.
// Category order: errors outrank redirects, redirects outrank misses, misses
// outrank hits.  Within a category outcomes are ranked by how strongly they
// indicate the destination set is unusable; see the rank tables below.  The
// ordering is fixed taxonomy, independent of the tunable policy table, so
// that reduction behaves identically across deployments.

const (
	sevHit = iota << 4
	sevMiss
	sevRedirect
	sevError
)

var sevRank = map[mc.Result]int{
	// errors, worst first: tko and connect failures mean no backend was
	// reachable at all, timeouts mean a backend was reached but misbehaving,
	// local_error means the fault is ours, not theirs.
	mc.ResTko:            sevError | 7,
	mc.ResConnectError:   sevError | 6,
	mc.ResConnectTimeout: sevError | 5,
	mc.ResTimeout:        sevError | 4,
	mc.ResRemoteError:    sevError | 3,
	mc.ResLocalError:     sevError | 2,
	mc.ResUnknown:        sevError | 1,

	// redirects: try_again demands action, busy is advisory.
	mc.ResTryAgain: sevRedirect | 2,
	mc.ResBusy:     sevRedirect | 1,

	// misses: hot misses carry lease pressure.
	mc.ResNotFoundHot: sevMiss | 3,
	mc.ResFoundStale:  sevMiss | 2,
	mc.ResNotFound:    sevMiss | 1,

	// hits and stores all rank equal lowest.
}

func severity(r mc.Result) int {
	return sevRank[r]
}

// WorseThan reports whether a's result is strictly more severe than b's.
func (r *Reply) WorseThan(other *Reply) bool {
	return severity(r.result) > severity(other.result)
}

// Reduce picks the single reply most representative of a fan-out's aggregate
// outcome: the worst one, so callers fail closed by default.  Ties keep the
// first-encountered candidate.  Single pass, no allocation.  Returns nil for
// an empty input.
func Reduce(replies []*Reply) *Reply {
	if len(replies) == 0 {
		return nil
	}

	worst := replies[0]
	for _, r := range replies[1:] {
		if r.WorseThan(worst) {
			worst = r
		}
	}
	return worst
}
