package util

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
)

// RedactPasteContent keeps only the edges of a paste for debug logs. Only
// those edges are copied.
func RedactPasteContent(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	if len(content) <= 20 {
		return "[REDACTED]"
	}
	return string(content[:10]) + "...[REDACTED]..." + string(content[len(content)-10:])
}

// RedactIP zeroes the host part of an address: the last octet for IPv4,
// everything past the /32 for IPv6. Unparseable input is hashed.
func RedactIP(ip string) string {
	host, _, err := net.SplitHostPort(ip)
	if err == nil {
		ip = host
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		hash := sha256.Sum256([]byte(ip))
		return "hash:" + hex.EncodeToString(hash[:8])
	}
	if ipv4 := parsed.To4(); ipv4 != nil {
		ipv4[3] = 0
		return ipv4.String()
	}
	ipv6 := parsed.To16()
	for i := 4; i < 16; i++ {
		ipv6[i] = 0
	}
	return ipv6.String()
}
