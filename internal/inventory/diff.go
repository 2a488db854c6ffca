// Package inventory computes installed-app set differences between the
// persisted baseline and the latest observed snapshot.
package inventory

import "sort"

// Result holds one diff pass. Output slices are sorted so processing order
// is deterministic even though callers must not rely on any order.
type Result struct {
	NewApps     []string
	RemovedApps []string
	// Bootstrap marks the first-ever pass (empty baseline): every observed
	// app shows up as new and callers should suppress new-install noise.
	Bootstrap bool
}

// Diff returns observed−baseline as NewApps and baseline−observed as
// RemovedApps. Pure set algebra; the same inputs always yield the same
// result.
func Diff(baseline, observed []string) Result {
	base := toSet(baseline)
	obs := toSet(observed)

	res := Result{Bootstrap: len(base) == 0}
	for id := range obs {
		if _, ok := base[id]; !ok {
			res.NewApps = append(res.NewApps, id)
		}
	}
	for id := range base {
		if _, ok := obs[id]; !ok {
			res.RemovedApps = append(res.RemovedApps, id)
		}
	}
	sort.Strings(res.NewApps)
	sort.Strings(res.RemovedApps)
	return res
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}
