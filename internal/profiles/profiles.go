// Package profiles provides ready-made scan presets. Each preset
// bundles a port list with worker and timeout settings tuned for a
// scanning style; the set is closed and presets are immutable.
package profiles

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/anstrom/portscout/internal/errors"
	"github.com/anstrom/portscout/internal/portset"
)

// Preset bundles the knobs for one ready-made scan configuration.
type Preset struct {
	Name        string
	Description string
	Ports       []int
	Workers     int
	Timeout     time.Duration
}

// displayOrder fixes listing order for All and Names.
var displayOrder = []string{"fast", "full", "web", "database", "mail", "stealth", "lab"}

var presets = map[string]Preset{
	"fast": {
		Name:        "fast",
		Description: "Quick sweep of the hundred most common ports",
		Ports:       portset.ProfileTop100.Ports(),
		Workers:     200,
		Timeout:     500 * time.Millisecond,
	},
	"full": {
		Name:        "full",
		Description: "Every well-known port, 1 through 1024",
		Ports:       portset.ProfileFull.Ports(),
		Workers:     150,
		Timeout:     time.Second,
	},
	"web": {
		Name:        "web",
		Description: "HTTP, HTTPS and common application server ports",
		Ports:       portset.ProfileWeb.Ports(),
		Workers:     50,
		Timeout:     time.Second,
	},
	"database": {
		Name:        "database",
		Description: "Relational and NoSQL database ports",
		Ports:       portset.ProfileDatabase.Ports(),
		Workers:     30,
		Timeout:     2 * time.Second,
	},
	"mail": {
		Name:        "mail",
		Description: "SMTP, POP3 and IMAP ports including TLS variants",
		Ports:       portset.ProfileMail.Ports(),
		Workers:     20,
		Timeout:     2 * time.Second,
	},
	"stealth": {
		Name:        "stealth",
		Description: "Top twenty ports, probed slowly with few workers",
		Ports:       portset.ProfileTop20.Ports(),
		Workers:     5,
		Timeout:     3 * time.Second,
	},
	"lab": {
		Name:        "lab",
		Description: "Service ports used by the local test lab",
		Ports:       []int{21, 1025, 2222, 3306, 5432, 6379, 8025, 8080, 8081, 8443, 27017},
		Workers:     20,
		Timeout:     2 * time.Second,
	},
}

// Get returns a preset by name. Lookup is case-insensitive; unknown
// names fail with the list of valid choices.
func Get(name string) (Preset, error) {
	preset, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Preset{}, errors.NewScanError(errors.CodeValidation,
			fmt.Sprintf("unknown scan profile %q, valid profiles: %s",
				name, strings.Join(Names(), ", ")))
	}

	ports := make([]int, len(preset.Ports))
	copy(ports, preset.Ports)
	preset.Ports = ports
	return preset, nil
}

// All returns every preset in display order.
func All() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, name := range displayOrder {
		preset, _ := Get(name)
		out = append(out, preset)
	}
	return out
}

// Names returns the preset names in display order.
func Names() []string {
	names := make([]string, len(displayOrder))
	copy(names, displayOrder)
	return names
}

// Exists reports whether name resolves to a preset.
func Exists(name string) bool {
	_, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func init() {
	// displayOrder and the preset map must stay in lockstep.
	if len(displayOrder) != len(presets) {
		panic("profiles: display order out of sync with preset map")
	}
	for _, name := range displayOrder {
		preset, ok := presets[name]
		if !ok {
			panic(fmt.Sprintf("profiles: preset %q missing", name))
		}
		if len(preset.Ports) == 0 || !sort.IntsAreSorted(preset.Ports) {
			panic(fmt.Sprintf("profiles: preset %q has invalid port list", name))
		}
	}
}
