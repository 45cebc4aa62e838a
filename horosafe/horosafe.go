// Package horosafe holds the input guards sitelens applies before handing
// user data to the browser or the filesystem: capture target validation
// (scheme, host, optional private-address blocking) and artifact file name
// containment.
package horosafe

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"
)

// ErrInvalidURL is returned when a target does not parse as a URL.
var ErrInvalidURL = errors.New("invalid URL")

// ErrUnsafeScheme is returned when a target URL is not http or https.
var ErrUnsafeScheme = errors.New("only http and https URLs can be captured")

// ErrNoHost is returned when a target URL has no host.
var ErrNoHost = errors.New("URL has no host")

// ErrPrivateTarget is returned when private-target blocking is on and the
// URL resolves to a loopback, link-local or private address.
var ErrPrivateTarget = errors.New("URL targets a private or loopback address")

// ErrBadName is returned for artifact names that are not a plain file name.
var ErrBadName = errors.New("invalid artifact name")

// ErrPathTraversal is returned when a joined path escapes its base directory.
var ErrPathTraversal = errors.New("path traversal detected")

// lookupHost is swapped in tests.
var lookupHost = net.LookupHost

// ValidateTarget checks that rawURL can be handed to the headless browser.
// With blockPrivate set, literal IPs and every resolved address of the host
// must be public. A DNS failure is let through: navigation will fail with a
// clearer error than we could give here.
func ValidateTarget(rawURL string, blockPrivate bool) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return ErrUnsafeScheme
	}
	host := u.Hostname()
	if host == "" {
		return ErrNoHost
	}
	if !blockPrivate {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrPrivateTarget
		}
		return nil
	}
	if strings.EqualFold(host, "localhost") {
		return ErrPrivateTarget
	}
	addrs, err := lookupHost(host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return ErrPrivateTarget
		}
	}
	return nil
}

// IsTargetError reports whether err came from ValidateTarget.
func IsTargetError(err error) bool {
	return errors.Is(err, ErrInvalidURL) || errors.Is(err, ErrUnsafeScheme) ||
		errors.Is(err, ErrNoHost) || errors.Is(err, ErrPrivateTarget)
}

// ValidateName accepts plain file names made of letters, digits, '_', '-'
// and '.', not starting with a dot, at most 255 bytes.
func ValidateName(name string) error {
	if name == "" || len(name) > 255 || name[0] == '.' {
		return ErrBadName
	}
	for _, r := range name {
		if !isNameChar(r) {
			return ErrBadName
		}
	}
	return nil
}

// SafeJoin validates name and joins it under base. The result is checked to
// stay inside base after cleaning.
func SafeJoin(base, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	cleanBase := filepath.Clean(base)
	joined := filepath.Join(cleanBase, name)
	if filepath.Dir(joined) != cleanBase {
		return "", ErrPathTraversal
	}
	return joined, nil
}

func isNameChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}

var privateNets = func() []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"100.64.0.0/10",
		"169.254.0.0/16",
		"fc00::/7",
	} {
		_, n, err := net.ParseCIDR(cidr)
		if err == nil {
			nets = append(nets, n)
		}
	}
	return nets
}()

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	for _, n := range privateNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
