package internal

import "strings"

// MergeDelta folds an incoming text delta into the content accumulated so
// far. Deltas may be redelivered or overlap earlier ones, so a plain append
// would duplicate text. The rules apply in order:
//
//  1. delta equals current: no-op
//  2. delta starts with current: delta replaces current
//  3. current already ends with or contains delta: no-op
//  4. delta contains current: append what follows that occurrence
//  5. otherwise append delta
func MergeDelta(current, delta string) string {
	if delta == "" || delta == current {
		return current
	}
	if strings.HasPrefix(delta, current) {
		return delta
	}
	if strings.HasSuffix(current, delta) || strings.Contains(current, delta) {
		return current
	}
	if idx := strings.Index(delta, current); idx >= 0 {
		return current + delta[idx+len(current):]
	}
	return current + delta
}
