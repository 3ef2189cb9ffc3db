package distribution

import (
	"fmt"
	"strings"
)

// LoginPolicy is the minimum authentication a request needs. Policies are
// ordered: NoLogin < OnlyForDownload < Everything.
type LoginPolicy int

const (
	// NoLogin never attaches a token up front.
	NoLogin LoginPolicy = iota
	// OnlyForDownload attaches a token to release lookups, which reveal download URLs.
	OnlyForDownload
	// Everything attaches a token to every request.
	Everything
)

// String returns the flag spelling of p.
func (p LoginPolicy) String() string {
	switch p {
	case NoLogin:
		return "none"
	case OnlyForDownload:
		return "download"
	case Everything:
		return "everything"
	default:
		return fmt.Sprintf("LoginPolicy(%d)", int(p))
	}
}

// ParseLoginPolicy parses the flag spelling of a policy. The empty string is NoLogin.
func ParseLoginPolicy(s string) (LoginPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "nologin", "no-login":
		return NoLogin, nil
	case "download", "onlyfordownload", "only-for-download":
		return OnlyForDownload, nil
	case "everything", "all":
		return Everything, nil
	default:
		return NoLogin, fmt.Errorf("unknown login policy %q (expected none, download or everything)", s)
	}
}

// requiresToken reports whether a request must carry a token before it is sent.
func (p LoginPolicy) requiresToken(revealsDownload bool) bool {
	return p >= Everything || (p == OnlyForDownload && revealsDownload)
}

// stricter returns the stricter of two policies.
func (p LoginPolicy) stricter(other LoginPolicy) LoginPolicy {
	if other > p {
		return other
	}
	return p
}
