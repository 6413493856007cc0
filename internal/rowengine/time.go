package rowengine

import "time"

// timestampToTime converts a WAL monotonic nanosecond timestamp into the
// wall-clock time callers expect on Metadata.Created/Updated.
func timestampToTime(ts uint64) time.Time {
	return time.Unix(0, int64(ts)).UTC()
}
