package archive

import "time"

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func ptrMillis(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return millis(*t)
}
