package puzzle

import "time"

// timeNow is a package-level variable for testability.
// Tests replace it to control LastUpdated in assertions.
var timeNow = func() time.Time { return time.Now().UTC() }
