package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultLimit applies when a list request gives no limit.
	DefaultLimit = 50
	// MaxLimit caps a single page.
	MaxLimit = 500

	offsetPrefix = "off"
)

// EncodeOffsetToken creates an opaque token pointing at offset.
func EncodeOffsetToken(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(offsetPrefix + "|" + strconv.Itoa(offset)))
}

// DecodeOffsetToken parses a token from EncodeOffsetToken. An empty token
// decodes to offset 0.
func DecodeOffsetToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("invalid pagination token format (base64 decode): %w", err)
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[0] != offsetPrefix {
		return 0, fmt.Errorf("invalid pagination token format (split)")
	}
	offset, err := strconv.Atoi(parts[1])
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid pagination token format (offset)")
	}
	return offset, nil
}

// ClampLimit returns limit bounded to (0, MaxLimit], defaulting to DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// NextToken returns the token for the following page, or "" when the page
// came back short and there is nothing more to read.
func NextToken(offset, limit, got int) string {
	if got < limit {
		return ""
	}
	return EncodeOffsetToken(offset + got)
}
