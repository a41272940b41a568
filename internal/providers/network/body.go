package network

import (
	"io"
	"unicode/utf8"
)

// readLimited reads at most limit bytes and reports whether more remained
func readLimited(r io.Reader, limit int) (string, bool, error) {
	buf, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return "", false, err
	}
	truncated := len(buf) > limit
	if truncated {
		buf = buf[:limit]
		for len(buf) > 0 && !utf8.Valid(buf) {
			buf = buf[:len(buf)-1]
		}
	}
	return string(buf), truncated, nil
}
