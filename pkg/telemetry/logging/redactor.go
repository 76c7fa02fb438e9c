package logging

import (
	"log/slog"
	"net/netip"
	"regexp"
	"strings"
)

// Redactor masks client IP addresses in log attributes.
type Redactor struct {
	ipv4 *regexp.Regexp
	ipv6 *regexp.Regexp
}

// NewRedactor creates a Redactor with the built-in address patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		ipv4: regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
		ipv6: regexp.MustCompile(`\b(?:[0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}\b`),
	}
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook. Attributes whose
// key names an address are masked outright; other string values have any
// embedded address masked.
func (r *Redactor) ReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}

	value := a.Value.String()
	if isAddressKey(a.Key) {
		return slog.String(a.Key, RedactIP(value))
	}
	return slog.String(a.Key, r.RedactString(value))
}

// RedactString masks every IP address embedded in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	value = r.ipv4.ReplaceAllStringFunc(value, RedactIP)
	return r.ipv6.ReplaceAllStringFunc(value, RedactIP)
}

// RedactIP keeps the first IPv4 octet or IPv6 group of an address.
// Values that do not parse as an address are returned unchanged.
func RedactIP(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ip
	}

	if addr.Is4() {
		return strings.SplitN(ip, ".", 2)[0] + ".*.*.*"
	}
	return strings.SplitN(ip, ":", 2)[0] + ":*"
}

func isAddressKey(key string) bool {
	key = strings.ToLower(key)
	return key == "ip" || strings.Contains(key, "ip_address") || strings.Contains(key, "remote_addr")
}
