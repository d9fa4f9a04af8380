package installer

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Change describes how an incoming version relates to the installed one.
type Change int

// Version changes.
const (
	// Replace means the versions are not comparable as semantic versions and differ.
	Replace Change = iota
	// Reinstall means both versions are equal.
	Reinstall
	// Upgrade means the incoming version is newer.
	Upgrade
	// Downgrade means the incoming version is older.
	Downgrade
)

// String implements fmt.Stringer.
func (c Change) String() string {
	switch c {
	case Reinstall:
		return "Reinstalling the same version"
	case Upgrade:
		return "Upgrading"
	case Downgrade:
		return "Downgrading"
	default:
		return "Replacing"
	}
}

// Compare classifies the move from installed to incoming.
// Versions without a leading "v" are accepted.
func Compare(installed, incoming string) Change {
	if installed == incoming {
		return Reinstall
	}

	a, b := canonical(installed), canonical(incoming)
	if !semver.IsValid(a) || !semver.IsValid(b) {
		return Replace
	}

	switch semver.Compare(a, b) {
	case -1:
		return Upgrade
	case 1:
		return Downgrade
	default:
		return Reinstall
	}
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}

	return v
}
