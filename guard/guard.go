// Package guard provides the input-hardening primitives shared across the
// pipeline: path traversal checks for profile and wordbook paths, URL
// safety checks (SSRF prevention) for the configurable dictionary
// endpoint, identifier validation for profile names, and bounded I/O.
package guard

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"path/filepath"
	"strings"
)

// MaxInputBytes is the default cap for reading input documents (8 MiB).
// Wordbook text files are tiny; scanned PDFs are not.
const MaxInputBytes int64 = 8 << 20

// ErrPathTraversal is returned when a user-supplied path escapes its base.
var ErrPathTraversal = errors.New("guard: path traversal detected")

// ErrSSRF is returned when a URL targets a private/loopback address.
var ErrSSRF = errors.New("guard: URL targets a private or loopback address")

// ErrUnsafeScheme is returned when a URL uses a non-HTTP(S) scheme.
var ErrUnsafeScheme = errors.New("guard: only http and https schemes are allowed")

// ErrTooLarge is returned when a read exceeds its byte limit.
var ErrTooLarge = errors.New("guard: input exceeds size limit")

// SafePath validates that joining base and userInput does not escape base.
// Returns the cleaned path or ErrPathTraversal.
func SafePath(base, userInput string) (string, error) {
	if strings.Contains(userInput, "..") {
		return "", ErrPathTraversal
	}
	// Clean both and verify the result stays under base.
	cleaned := filepath.Join(base, filepath.Clean("/"+userInput))
	if !strings.HasPrefix(cleaned, filepath.Clean(base)+string(filepath.Separator)) &&
		cleaned != filepath.Clean(base) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}

// ValidateURL checks that rawURL uses http/https, has a hostname, and does
// not resolve to a private or loopback IP (SSRF prevention).
// DNS resolution is performed to catch rebinding via internal hostnames.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("guard: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("guard: URL has no host")
	}

	// Check literal IP first.
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrSSRF
		}
		return nil
	}

	// Resolve hostname and check all addresses.
	addrs, err := net.LookupHost(host)
	if err != nil {
		// DNS failure — allow through (might be a valid external host that
		// is temporarily unresolvable). The caller will get a network error
		// at connection time anyway.
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return ErrSSRF
		}
	}
	return nil
}

// ValidateIdentifier rejects identifiers that contain characters unsuitable
// for SQL identifiers, file names, or URL path segments. Allows alphanumeric,
// underscore, hyphen, and dot. Profile names pass through this before
// touching the journal or the filesystem.
func ValidateIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("guard: identifier must not be empty")
	}
	if len(s) > 256 {
		return fmt.Errorf("guard: identifier too long (max 256)")
	}
	for _, r := range s {
		if !isIdentChar(r) {
			return fmt.Errorf("guard: invalid character %q in identifier", r)
		}
	}
	return nil
}

// LimitedReadAll reads at most maxBytes from r, or ErrTooLarge if the
// limit is exceeded.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	lr := io.LimitReader(r, maxBytes+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w (max %d bytes)", ErrTooLarge, maxBytes)
	}
	return data, nil
}

func isIdentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	for _, cidr := range privateCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// RFC 1918 and RFC 4193 blocks, plus v4 link-local. Parsed once; the
// literals are fixed so a parse failure is a programming error.
var privateCIDRs = func() []*net.IPNet {
	blocks := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16",
		"fc00::/7",
		"::1/128",
	}
	nets := make([]*net.IPNet, 0, len(blocks))
	for _, b := range blocks {
		_, cidr, err := net.ParseCIDR(b)
		if err != nil {
			panic("guard: bad CIDR literal: " + b)
		}
		nets = append(nets, cidr)
	}
	return nets
}()
