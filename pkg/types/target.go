package types

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// MaxExpandedTargets bounds how many addresses a single range or CIDR may expand to.
const MaxExpandedTargets = 65536

// NormalizeTarget accepts a host, host:port, or full URL and reduces it to the bare host
// that every stage adapter receives.
func NormalizeTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("target cannot be empty")
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("invalid URL %q: %w", raw, err)
		}
		if u.Hostname() == "" {
			return "", fmt.Errorf("URL %q has no hostname", raw)
		}
		return strings.ToLower(u.Hostname()), nil
	}

	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	raw = strings.TrimSuffix(raw, "/")
	if i := strings.Index(raw, "/"); i >= 0 && !isCIDR(raw) {
		raw = raw[:i]
	}
	if strings.ContainsAny(raw, " \t") {
		return "", fmt.Errorf("target %q contains whitespace", raw)
	}
	return strings.ToLower(raw), nil
}

// SplitTargets splits free-form input on commas, whitespace and newlines.
func SplitTargets(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\r' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" && !strings.HasPrefix(f, "#") {
			out = append(out, f)
		}
	}
	return out
}

// ExpandTargets normalizes every entry and expands IPv4 ranges (a.b.c.d-e.f.g.h) and
// CIDR blocks into individual addresses. Duplicates are preserved so that
// ValidateTargets can reject them.
func ExpandTargets(raw []string) ([]string, error) {
	var out []string
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		switch {
		case isCIDR(entry):
			ips, err := expandCIDR(entry)
			if err != nil {
				return nil, err
			}
			out = append(out, ips...)
		case isRange(entry):
			ips, err := expandRange(entry)
			if err != nil {
				return nil, err
			}
			out = append(out, ips...)
		default:
			t, err := NormalizeTarget(entry)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
	}
	return out, nil
}

// ValidateTargets rejects an empty list or one containing the same target twice.
func ValidateTargets(targets []string) error {
	if len(targets) == 0 {
		return &ValidationError{Err: ErrNoTargets}
	}
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if strings.TrimSpace(t) == "" {
			return &ValidationError{Err: fmt.Errorf("target cannot be empty")}
		}
		if _, ok := seen[t]; ok {
			return &ValidationError{Target: t, Err: ErrDuplicateTarget}
		}
		seen[t] = struct{}{}
	}
	return nil
}

// ParseTargets runs SplitTargets, ExpandTargets and ValidateTargets in order.
func ParseTargets(input string) ([]string, error) {
	targets, err := ExpandTargets(SplitTargets(input))
	if err != nil {
		return nil, &ValidationError{Err: err}
	}
	if err := ValidateTargets(targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// StripWWW removes a leading "www." label.
func StripWWW(target string) string {
	return strings.TrimPrefix(target, "www.")
}

// IsIP reports whether the target is a literal IP address.
func IsIP(target string) bool {
	_, err := netip.ParseAddr(target)
	return err == nil
}

func isCIDR(s string) bool {
	_, err := netip.ParsePrefix(s)
	return err == nil
}

func isRange(s string) bool {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return false
	}
	a, errA := netip.ParseAddr(strings.TrimSpace(parts[0]))
	b, errB := netip.ParseAddr(strings.TrimSpace(parts[1]))
	return errA == nil && errB == nil && a.Is4() && b.Is4()
}

func expandCIDR(s string) ([]string, error) {
	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR %q: %w", s, err)
	}
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("CIDR %q: only IPv4 blocks can be expanded", s)
	}
	if bits := 32 - prefix.Bits(); bits > 16 {
		return nil, fmt.Errorf("CIDR %q expands to more than %d addresses", s, MaxExpandedTargets)
	}
	prefix = prefix.Masked()
	var out []string
	for ip := prefix.Addr(); prefix.Contains(ip); ip = ip.Next() {
		out = append(out, ip.String())
		if !ip.Next().IsValid() {
			break
		}
	}
	return out, nil
}

func expandRange(s string) ([]string, error) {
	parts := strings.Split(s, "-")
	start, _ := netip.ParseAddr(strings.TrimSpace(parts[0]))
	end, _ := netip.ParseAddr(strings.TrimSpace(parts[1]))
	if end.Less(start) {
		return nil, fmt.Errorf("range %q: end address precedes start", s)
	}
	var out []string
	for ip := start; ip.Compare(end) <= 0; ip = ip.Next() {
		if len(out) >= MaxExpandedTargets {
			return nil, fmt.Errorf("range %q expands to more than %d addresses", s, MaxExpandedTargets)
		}
		out = append(out, ip.String())
		if !ip.Next().IsValid() {
			break
		}
	}
	return out, nil
}
