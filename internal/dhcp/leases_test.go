package dhcp_test

import (
	"io/fs"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bavix/presence/internal/dhcp"
	"github.com/bavix/presence/internal/leasetime"
)

// TestFileReader implements FileReader using fstest.MapFS.
type TestFileReader struct {
	fs fs.FS
}

func (r *TestFileReader) ReadFile(path string) ([]byte, error) {
	return fs.ReadFile(r.fs, path)
}

func TestParseLeaseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want dhcp.Lease
		ok   bool
	}{
		{
			name: "full line",
			line: "1700000000 aa:bb:cc:dd:ee:01 192.168.1.10 laptop 01:aa:bb:cc:dd:ee:01",
			want: dhcp.Lease{
				Expire:   time.Unix(1700000000, 0),
				MAC:      "AA:BB:CC:DD:EE:01",
				IP:       "192.168.1.10",
				Hostname: "laptop",
				ID:       "01:aa:bb:cc:dd:ee:01",
			},
			ok: true,
		},
		{
			name: "star hostname",
			line: "1700000000 aa:bb:cc:dd:ee:02 192.168.1.11 * *",
			want: dhcp.Lease{Expire: time.Unix(1700000000, 0), MAC: "AA:BB:CC:DD:EE:02", IP: "192.168.1.11"},
			ok:   true,
		},
		{
			name: "infinite lease",
			line: "0 aa:bb:cc:dd:ee:03 192.168.1.12 nas",
			want: dhcp.Lease{MAC: "AA:BB:CC:DD:EE:03", IP: "192.168.1.12", Hostname: "nas"},
			ok:   true,
		},
		{name: "too short", line: "1700000000 aa:bb:cc:dd:ee:04", ok: false},
		{name: "bad expire", line: "soon aa:bb:cc:dd:ee:05 192.168.1.13", ok: false},
		{name: "negative expire", line: "-1 aa:bb:cc:dd:ee:05 192.168.1.13", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := dhcp.ParseLeaseLine(tt.line)
			assert.Equal(t, tt.ok, ok)

			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestLeaseFileRead(t *testing.T) {
	t.Parallel()

	mapFS := fstest.MapFS{
		"dhcp.leases": &fstest.MapFile{Data: []byte(
			"# comment\n" +
				"1700000000 aa:bb:cc:dd:ee:01 192.168.1.10 laptop *\n" +
				"\n" +
				"garbage\n" +
				"1700000100 aa:bb:cc:dd:ee:02 192.168.1.11 * *\n",
		)},
	}

	lf := dhcp.NewLeaseFileWithReader("dhcp.leases", &TestFileReader{fs: mapFS})

	leases, err := lf.Read()
	require.NoError(t, err)
	require.Len(t, leases, 2)
	assert.Equal(t, "laptop", leases[0].Hostname)
	assert.Equal(t, "AA:BB:CC:DD:EE:02", leases[1].MAC)
}

func TestLeaseFileMissing(t *testing.T) {
	t.Parallel()

	lf := dhcp.NewLeaseFileWithReader("nope", &TestFileReader{fs: fstest.MapFS{}})

	_, err := lf.Read()
	require.Error(t, err)
}

func TestRemaining(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)

	got := dhcp.Remaining([]dhcp.Lease{
		{MAC: "AA:BB:CC:DD:EE:01", Expire: now.Add(90 * time.Second)},
		{MAC: "AA:BB:CC:DD:EE:02", Expire: now.Add(-time.Minute)},
		{MAC: "AA:BB:CC:DD:EE:03"},
	}, now)

	assert.Equal(t, []leasetime.Lease{
		{MAC: "AA:BB:CC:DD:EE:01", ExpiresIn: 90},
		{MAC: "AA:BB:CC:DD:EE:02", ExpiresIn: -60},
	}, got)
}

func TestDefaultPaths(t *testing.T) {
	t.Parallel()

	assert.Equal(t, dhcp.DefaultLeasePath, dhcp.NewLeaseFile("").Path())
}
