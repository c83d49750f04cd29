package headers

import (
	"net/http"
	"strings"

	"github.com/buemura/rook/pkg/types"
)

// HeaderRule describes one security header and how to judge its value.
type HeaderRule struct {
	Name        string
	Severity    types.Severity
	HTTPSOnly   bool
	Valid       func(val string) bool
	Description string
	Remediation string
}

// Check returns a finding when the header is missing or misconfigured.
func (r HeaderRule) Check(h http.Header, isHTTPS bool) *types.Finding {
	if r.HTTPSOnly && !isHTTPS {
		return nil
	}
	val := h.Get(r.Name)
	if val == "" {
		return &types.Finding{
			Title:       "Missing " + r.Name + " header",
			Description: r.Description,
			Severity:    r.Severity,
			Remediation: r.Remediation,
		}
	}
	if r.Valid != nil && !r.Valid(val) {
		return &types.Finding{
			Title:       "Misconfigured " + r.Name + " header",
			Description: r.Name + " is set to an unsafe value: " + val,
			Severity:    r.Severity,
			Evidence:    r.Name + ": " + val,
			Remediation: r.Remediation,
		}
	}
	return nil
}

// Rules returns every header rule in display order.
func Rules() []HeaderRule {
	return []HeaderRule{
		{
			Name:      "Strict-Transport-Security",
			Severity:  types.SeverityHigh,
			HTTPSOnly: true,
			Valid: func(v string) bool {
				return strings.Contains(strings.ToLower(v), "max-age=") && !strings.Contains(v, "max-age=0")
			},
			Description: "HSTS is not enforced, which allows protocol downgrade and cookie hijacking.",
			Remediation: "Strict-Transport-Security: max-age=31536000; includeSubDomains",
		},
		{
			Name:        "Content-Security-Policy",
			Severity:    types.SeverityMedium,
			Description: "No content security policy restricts script and resource origins.",
			Remediation: "Content-Security-Policy: default-src 'self'",
		},
		{
			Name:        "X-Content-Type-Options",
			Severity:    types.SeverityLow,
			Valid:       func(v string) bool { return strings.EqualFold(strings.TrimSpace(v), "nosniff") },
			Description: "Browsers may MIME-sniff responses.",
			Remediation: "X-Content-Type-Options: nosniff",
		},
		{
			Name:     "X-Frame-Options",
			Severity: types.SeverityLow,
			Valid: func(v string) bool {
				v = strings.ToUpper(strings.TrimSpace(v))
				return v == "DENY" || v == "SAMEORIGIN"
			},
			Description: "The page can be framed by other origins (clickjacking).",
			Remediation: "X-Frame-Options: DENY",
		},
		{
			Name:        "X-XSS-Protection",
			Severity:    types.SeverityInfo,
			Description: "Legacy XSS auditor header is absent.",
			Remediation: "X-XSS-Protection: 0",
		},
		{
			Name:        "Referrer-Policy",
			Severity:    types.SeverityLow,
			Valid:       func(v string) bool { return !strings.EqualFold(strings.TrimSpace(v), "unsafe-url") },
			Description: "Full URLs may leak to third parties through the Referer header.",
			Remediation: "Referrer-Policy: strict-origin-when-cross-origin",
		},
		{
			Name:        "Permissions-Policy",
			Severity:    types.SeverityLow,
			Description: "Powerful browser features are not explicitly restricted.",
			Remediation: "Permissions-Policy: camera=(), microphone=(), geolocation=()",
		},
	}
}

// CheckCookies flags cookies missing the Secure or HttpOnly attributes.
func CheckCookies(resp *http.Response, isHTTPS bool) []types.Finding {
	var findings []types.Finding
	for _, c := range resp.Cookies() {
		var missing []string
		if isHTTPS && !c.Secure {
			missing = append(missing, "Secure")
		}
		if !c.HttpOnly {
			missing = append(missing, "HttpOnly")
		}
		if len(missing) == 0 {
			continue
		}
		findings = append(findings, types.Finding{
			Title:       "Cookie " + c.Name + " lacks " + strings.Join(missing, " and "),
			Description: "Session cookies without these flags can be read by scripts or sent in clear text.",
			Severity:    types.SeverityLow,
			Evidence:    "Set-Cookie: " + c.Name,
			Metadata:    map[string]string{"cookie": c.Name},
		})
	}
	return findings
}
