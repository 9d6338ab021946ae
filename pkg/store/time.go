package store

import "time"

// nowFn sources delta version timestamps; overridden in tests for
// determinism. Kept in the same nanosecond space as pkg/collection's nowFn
// and index.PersistDir's snapshot version directories, so a store's delta
// log and a recovered snapshot's stamped version are directly comparable.
var nowFn = func() int64 { return time.Now().UnixNano() }

// advanceVersion returns a version strictly greater than *cur, drawn from
// nowFn()'s nanosecond clock but bumped by one when two calls land in the
// same tick (or the clock goes backwards), so delta versions stay unique and
// strictly increasing even under rapid succession.
func advanceVersion(cur *int64) int64 {
	v := nowFn()
	if v <= *cur {
		v = *cur + 1
	}
	*cur = v
	return v
}
