package domain

import "strings"

const addressHexLen = 40

// NormalizeAddress lower-cases a wallet address and validates its shape
// (0x followed by 40 hex characters). Malformed input is reported as
// ErrInvalidAgent; callers in the auth path remap it to ErrUnauthorized.
func NormalizeAddress(addr string) (string, error) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if !strings.HasPrefix(addr, "0x") || len(addr) != 2+addressHexLen {
		return "", ErrInvalidAgent
	}
	for _, r := range addr[2:] {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", ErrInvalidAgent
		}
	}
	return addr, nil
}
