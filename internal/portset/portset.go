// Package portset builds ordered, duplicate-free port lists from
// specification strings and named port profiles. A specification mixes
// single ports and inclusive ranges ("22,80,8000-8100"); profiles are a
// closed set of named lists resolved only inside this package. Parsing
// is atomic: a single malformed token fails the whole specification.
package portset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/anstrom/portscout/internal/errors"
)

// Port number bounds for TCP.
const (
	MinPort = 1
	MaxPort = 65535
)

// Profile identifies a named built-in port list.
type Profile uint8

const (
	ProfileTop20 Profile = iota + 1
	ProfileTop100
	ProfileWeb
	ProfileDatabase
	ProfileMail
	ProfileFull
)

// profileNames maps profiles to their CLI-facing names.
var profileNames = map[Profile]string{
	ProfileTop20:    "top20",
	ProfileTop100:   "top100",
	ProfileWeb:      "web",
	ProfileDatabase: "database",
	ProfileMail:     "mail",
	ProfileFull:     "full",
}

// String returns the profile's name.
func (p Profile) String() string {
	if name, ok := profileNames[p]; ok {
		return name
	}
	return fmt.Sprintf("profile(%d)", uint8(p))
}

// Description returns a short human-readable summary of the profile.
func (p Profile) Description() string {
	switch p {
	case ProfileTop20:
		return "20 most common TCP ports"
	case ProfileTop100:
		return "top 100 TCP ports"
	case ProfileWeb:
		return "common web and application server ports"
	case ProfileDatabase:
		return "common database and cache ports"
	case ProfileMail:
		return "SMTP, POP3 and IMAP ports"
	case ProfileFull:
		return "all privileged ports (1-1024)"
	default:
		return "unknown profile"
	}
}

// Ports returns a copy of the profile's port list, strictly ascending.
func (p Profile) Ports() []int {
	src := profilePorts[p]
	out := make([]int, len(src))
	copy(out, src)
	return out
}

// Profiles returns every defined profile in display order.
func Profiles() []Profile {
	return []Profile{
		ProfileTop20,
		ProfileTop100,
		ProfileWeb,
		ProfileDatabase,
		ProfileMail,
		ProfileFull,
	}
}

// ProfileFromName resolves a profile name. Unknown names fail with a
// port specification error naming the token.
func ProfileFromName(name string) (Profile, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for p, n := range profileNames {
		if n == normalized {
			return p, nil
		}
	}
	return 0, errors.ErrPortSpec(name, "unknown port profile")
}

// IsProfileName reports whether a token names a built-in profile.
func IsProfileName(name string) bool {
	_, err := ProfileFromName(name)
	return err == nil
}

// Parse builds a strictly ascending, duplicate-free port list from a
// comma-separated specification of single ports and inclusive ranges.
// The parse fails atomically on the first malformed token.
func Parse(spec string) ([]int, error) {
	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return nil, errors.ErrPortSpec(spec, "empty specification")
	}

	seen := make(map[int]struct{})
	for _, token := range strings.Split(trimmed, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, errors.ErrPortSpec(trimmed, "empty token")
		}

		if strings.Contains(token, "-") {
			if err := parseRange(token, seen); err != nil {
				return nil, err
			}
			continue
		}

		port, err := parsePort(token)
		if err != nil {
			return nil, errors.ErrPortSpec(token, err.Error())
		}
		seen[port] = struct{}{}
	}

	ports := make([]int, 0, len(seen))
	for port := range seen {
		ports = append(ports, port)
	}
	sort.Ints(ports)
	return ports, nil
}

// parseRange expands an inclusive "start-end" token into seen.
func parseRange(token string, seen map[int]struct{}) error {
	parts := strings.SplitN(token, "-", 2)
	start, err := parsePort(parts[0])
	if err != nil {
		return errors.ErrPortSpec(token, fmt.Sprintf("invalid range start: %v", err))
	}
	end, err := parsePort(parts[1])
	if err != nil {
		return errors.ErrPortSpec(token, fmt.Sprintf("invalid range end: %v", err))
	}
	if start > end {
		return errors.ErrPortSpec(token, "range start greater than end")
	}
	for port := start; port <= end; port++ {
		seen[port] = struct{}{}
	}
	return nil
}

// Format renders a sorted port list in compact range notation, folding
// consecutive runs of three or more into "start-end" tokens. It is the
// inverse of Parse for already-normalized lists.
func Format(ports []int) string {
	if len(ports) == 0 {
		return ""
	}

	var b strings.Builder
	for i := 0; i < len(ports); {
		j := i
		for j+1 < len(ports) && ports[j+1] == ports[j]+1 {
			j++
		}

		if b.Len() > 0 {
			b.WriteByte(',')
		}
		switch {
		case j == i:
			b.WriteString(strconv.Itoa(ports[i]))
		case j == i+1:
			b.WriteString(strconv.Itoa(ports[i]))
			b.WriteByte(',')
			b.WriteString(strconv.Itoa(ports[j]))
		default:
			b.WriteString(strconv.Itoa(ports[i]))
			b.WriteByte('-')
			b.WriteString(strconv.Itoa(ports[j]))
		}
		i = j + 1
	}
	return b.String()
}

// parsePort parses a single port token and checks bounds.
func parsePort(token string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if port < MinPort || port > MaxPort {
		return 0, fmt.Errorf("port %d outside range %d-%d", port, MinPort, MaxPort)
	}
	return port, nil
}

// profilePorts holds the immutable port list behind each profile. Lists
// are stored ascending; Ports copies so callers cannot mutate them.
var profilePorts = map[Profile][]int{
	ProfileTop20: {
		21, 22, 23, 25, 53, 80, 110, 111, 135, 139,
		143, 443, 445, 993, 995, 1723, 3306, 3389, 5900, 8080,
	},
	ProfileTop100: {
		7, 9, 13, 21, 22, 23, 25, 26, 37, 53,
		79, 80, 81, 88, 106, 110, 111, 113, 119, 135,
		139, 143, 144, 179, 199, 389, 427, 443, 444, 445,
		465, 513, 514, 515, 543, 544, 548, 554, 587, 631,
		646, 873, 990, 993, 995, 1025, 1026, 1027, 1028, 1029,
		1110, 1433, 1720, 1723, 1755, 1900, 2000, 2001, 2049, 2121,
		2717, 3000, 3128, 3306, 3389, 3986, 4899, 5000, 5009, 5051,
		5060, 5101, 5190, 5357, 5432, 5631, 5666, 5800, 5900, 6000,
		6001, 6646, 7070, 8000, 8008, 8009, 8080, 8081, 8443, 8888,
		9100, 9999, 10000, 32768, 49152, 49153, 49154,
	},
	ProfileWeb: {
		80, 443, 3000, 3001, 4000, 5000, 5001, 8000,
		8008, 8080, 8443, 8888, 9000, 9090, 9443,
	},
	ProfileDatabase: {
		1433, 1521, 3306, 5432, 5984, 6379, 7474, 8529,
		9042, 9200, 9300, 11211, 26257, 27017, 28017,
	},
	ProfileMail: {
		25, 110, 143, 465, 587, 993, 995, 2525,
	},
	ProfileFull: fullRange(),
}

// fullRange builds the 1-1024 privileged port list.
func fullRange() []int {
	ports := make([]int, 1024)
	for i := range ports {
		ports[i] = i + 1
	}
	return ports
}
