// Package dhcp reads the dnsmasq lease file and the OpenWrt UCI dhcp config.
package dhcp

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bavix/presence/internal/leasetime"
	"github.com/bavix/presence/internal/macaddr"
)

// DefaultLeasePath is where dnsmasq keeps leases on OpenWrt.
const DefaultLeasePath = "/tmp/dhcp.leases"

// Lease is one line of the dnsmasq lease file.
type Lease struct {
	// Expire is zero for infinite leases.
	Expire   time.Time `json:"expire"`
	MAC      string    `json:"mac"`
	IP       string    `json:"ip"`
	Hostname string    `json:"hostname"`
	ID       string    `json:"id"`
}

// FileReader interface for reading files (for testing).
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// OSFileReader implements FileReader using real OS files.
type OSFileReader struct{}

func (r OSFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path) //nolint:gosec
}

// LeaseFile reads a dnsmasq lease file on demand.
type LeaseFile struct {
	path   string
	reader FileReader
}

// NewLeaseFile returns a reader for path.
func NewLeaseFile(path string) *LeaseFile {
	return NewLeaseFileWithReader(path, OSFileReader{})
}

// NewLeaseFileWithReader is NewLeaseFile with a custom reader.
func NewLeaseFileWithReader(path string, reader FileReader) *LeaseFile {
	if path == "" {
		path = DefaultLeasePath
	}

	return &LeaseFile{path: path, reader: reader}
}

// Path returns the lease file location.
func (lf *LeaseFile) Path() string { return lf.path }

// Read parses every lease in the file. Malformed lines are skipped.
func (lf *LeaseFile) Read() ([]Lease, error) {
	content, err := lf.reader.ReadFile(lf.path)
	if err != nil {
		return nil, err
	}

	var leases []Lease

	for line := range strings.SplitSeq(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if lease, ok := ParseLeaseLine(line); ok {
			leases = append(leases, lease)
		}
	}

	return leases, nil
}

// ParseLeaseLine parses "<expire> <mac> <ip> <hostname> <id>".
// Hostname "*" means none; expire 0 means infinite.
func ParseLeaseLine(line string) (Lease, bool) {
	parts := strings.Fields(line)

	const minLeaseParts = 3 // expire, MAC and IP are required
	if len(parts) < minLeaseParts {
		return Lease{}, false
	}

	expireInt, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || expireInt < 0 {
		return Lease{}, false
	}

	lease := Lease{
		MAC: macaddr.Canonical(parts[1]),
		IP:  parts[2],
	}

	if expireInt > 0 {
		lease.Expire = time.Unix(expireInt, 0)
	}

	if len(parts) > 3 && parts[3] != "*" {
		lease.Hostname = parts[3]
	}

	if len(parts) > 4 && parts[4] != "*" {
		lease.ID = parts[4]
	}

	return lease, true
}

// Remaining converts leases into remaining-time records as of now.
// Infinite leases are dropped since they carry no age.
func Remaining(leases []Lease, now time.Time) []leasetime.Lease {
	out := make([]leasetime.Lease, 0, len(leases))

	for _, l := range leases {
		if l.Expire.IsZero() {
			continue
		}

		out = append(out, leasetime.Lease{
			MAC:       l.MAC,
			ExpiresIn: int64(l.Expire.Sub(now) / time.Second),
		})
	}

	return out
}
