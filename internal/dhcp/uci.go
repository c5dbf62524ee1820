package dhcp

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/bavix/presence/internal/macaddr"
)

// DefaultUCIPath is the OpenWrt dhcp config.
const DefaultUCIPath = "/etc/config/dhcp"

// Section is one "config <type> ['<name>']" block.
type Section struct {
	Type    string
	Name    string
	Options map[string][]string
}

// Option returns the first value of key.
func (s Section) Option(key string) string {
	if v := s.Options[key]; len(v) > 0 {
		return v[0]
	}

	return ""
}

var (
	sectionRe = regexp.MustCompile(`^config\s+(\S+)(?:\s+['"]?([^'"]*)['"]?)?\s*$`)
	optionRe  = regexp.MustCompile(`^(option|list)\s+(\S+)\s+['"]?(.*?)['"]?\s*$`)
)

// ParseUCI reads UCI config syntax into sections.
func ParseUCI(r io.Reader) ([]Section, error) {
	var (
		sections []Section
		cur      *Section
	)

	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := sectionRe.FindStringSubmatch(line); m != nil {
			sections = append(sections, Section{Type: m[1], Name: m[2], Options: map[string][]string{}})
			cur = &sections[len(sections)-1]

			continue
		}

		m := optionRe.FindStringSubmatch(line)
		if m == nil || cur == nil {
			continue
		}

		key, value := m[2], m[3]
		if m[1] == "option" {
			cur.Options[key] = []string{value}
		} else {
			cur.Options[key] = append(cur.Options[key], value)
		}
	}

	return sections, scanner.Err()
}

// LeaseDurations is the lease-time configuration for one network.
type LeaseDurations struct {
	// Default is the interface's leasetime, e.g. "12h".
	Default string
	// Hosts maps uppercase MAC to a per-host leasetime.
	Hosts map[string]string
}

// LeaseDurationsFrom extracts the leasetime of the dhcp section named network
// and every static host's leasetime. A host section may list several MACs.
func LeaseDurationsFrom(sections []Section, network string) LeaseDurations {
	d := LeaseDurations{Hosts: map[string]string{}}

	for _, s := range sections {
		switch s.Type {
		case "dhcp":
			if s.Name == network {
				d.Default = s.Option("leasetime")
			}
		case "host":
			lt := s.Option("leasetime")
			if lt == "" {
				continue
			}

			for _, v := range s.Options["mac"] {
				for _, mac := range strings.Fields(v) {
					d.Hosts[macaddr.Canonical(mac)] = lt
				}
			}
		}
	}

	return d
}

// ReadLeaseDurations parses the UCI file at path.
func ReadLeaseDurations(path, network string) (LeaseDurations, error) {
	if path == "" {
		path = DefaultUCIPath
	}

	file, err := os.Open(path) //nolint:gosec
	if err != nil {
		return LeaseDurations{}, err
	}

	defer func() { _ = file.Close() }()

	sections, err := ParseUCI(file)
	if err != nil {
		return LeaseDurations{}, err
	}

	return LeaseDurationsFrom(sections, network), nil
}
