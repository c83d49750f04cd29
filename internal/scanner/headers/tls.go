package headers

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/buemura/rook/pkg/types"
)

// expiryWarning is how close to NotAfter a certificate starts being reported.
const expiryWarning = 30 * 24 * time.Hour

// CheckTLS inspects the negotiated connection of an HTTPS response.
func CheckTLS(state *tls.ConnectionState, host string, now time.Time) []types.Finding {
	if state == nil {
		return nil
	}

	var findings []types.Finding
	version := tlsVersionName(state.Version)
	if state.Version <= tls.VersionTLS11 {
		findings = append(findings, types.Finding{
			Title:       "Deprecated TLS version: " + version,
			Description: fmt.Sprintf("The server negotiated %s, which is deprecated and insecure.", version),
			Severity:    types.SeverityHigh,
			Evidence:    "Negotiated protocol version: " + version,
			Remediation: "Disable TLS 1.0 and TLS 1.1. Support TLS 1.2 or higher.",
			Metadata:    map[string]string{"tls_version": version},
		})
	}

	if isWeakCipher(state.CipherSuite) {
		name := tls.CipherSuiteName(state.CipherSuite)
		findings = append(findings, types.Finding{
			Title:       "Weak cipher suite: " + name,
			Description: fmt.Sprintf("The server negotiated cipher suite %s, which is considered weak.", name),
			Severity:    types.SeverityMedium,
			Evidence:    fmt.Sprintf("Negotiated cipher suite: %s (0x%04x)", name, state.CipherSuite),
			Remediation: "Prefer AES-GCM or ChaCha20-Poly1305 cipher suites.",
			Metadata:    map[string]string{"cipher_suite": name},
		})
	}

	if len(state.PeerCertificates) == 0 {
		return findings
	}
	cert := state.PeerCertificates[0]
	findings = append(findings, checkExpiry(cert, now)...)
	if host != "" {
		if err := cert.VerifyHostname(host); err != nil {
			findings = append(findings, types.Finding{
				Title:       "Certificate hostname mismatch",
				Description: fmt.Sprintf("The certificate does not match %q: %v", host, err),
				Severity:    types.SeverityHigh,
				Evidence:    fmt.Sprintf("CN: %s, SANs: %v", cert.Subject.CommonName, cert.DNSNames),
				Remediation: "Obtain a certificate that covers the target hostname.",
				Metadata: map[string]string{
					"hostname":    host,
					"common_name": cert.Subject.CommonName,
					"san_names":   strings.Join(cert.DNSNames, ", "),
				},
			})
		}
	}
	if len(state.PeerCertificates) == 1 && cert.Issuer.String() == cert.Subject.String() {
		findings = append(findings, types.Finding{
			Title:       "Self-signed certificate",
			Description: "The server presented a self-signed certificate.",
			Severity:    types.SeverityMedium,
			Evidence:    fmt.Sprintf("Issuer: %s, Subject: %s", cert.Issuer, cert.Subject),
			Remediation: "Use a certificate issued by a trusted CA.",
			Metadata:    map[string]string{"issuer": cert.Issuer.String()},
		})
	}
	return findings
}

func checkExpiry(cert *x509.Certificate, now time.Time) []types.Finding {
	notAfter := cert.NotAfter.Format(time.RFC3339)
	if now.After(cert.NotAfter) {
		return []types.Finding{{
			Title:       "Certificate expired",
			Description: "The certificate expired on " + notAfter + ".",
			Severity:    types.SeverityHigh,
			Evidence:    "NotAfter: " + notAfter,
			Remediation: "Renew the certificate.",
			Metadata:    map[string]string{"not_after": notAfter},
		}}
	}
	left := cert.NotAfter.Sub(now)
	if left > expiryWarning {
		return nil
	}
	days := int(left.Hours() / 24)
	return []types.Finding{{
		Title:       fmt.Sprintf("Certificate expires in %d days", days),
		Description: "The certificate expires on " + notAfter + ".",
		Severity:    types.SeverityMedium,
		Evidence:    "NotAfter: " + notAfter,
		Remediation: "Renew the certificate before it expires.",
		Metadata:    map[string]string{"not_after": notAfter, "days_left": strconv.Itoa(days)},
	}}
}

// TLSSummary is the one-line description of a negotiated connection.
func TLSSummary(state *tls.ConnectionState) string {
	if state == nil {
		return ""
	}
	return fmt.Sprintf("TLS: %s, %s", tlsVersionName(state.Version), tls.CipherSuiteName(state.CipherSuite))
}

func tlsVersionName(version uint16) string {
	switch version {
	case tls.VersionTLS10:
		return "TLS 1.0"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	default:
		return fmt.Sprintf("unknown (0x%04x)", version)
	}
}

func isWeakCipher(id uint16) bool {
	for _, suite := range tls.InsecureCipherSuites() {
		if suite.ID == id {
			return true
		}
	}
	return false
}
