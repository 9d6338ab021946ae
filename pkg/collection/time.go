package collection

import "time"

// nowFn is overridden in tests to make TTL expiry deterministic.
var nowFn = func() int64 { return time.Now().UnixNano() }
