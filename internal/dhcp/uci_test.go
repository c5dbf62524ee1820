package dhcp_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bavix/presence/internal/dhcp"
)

const uciDHCP = `
config dnsmasq
	option domainneeded '1'
	option local '/lan/'

config dhcp 'lan'
	option interface 'lan'
	option start '100'
	option limit '150'
	option leasetime '12h'

config dhcp 'guest'
	option interface 'guest'
	option leasetime '1h'

# static hosts
config host
	option name 'nas'
	option mac 'aa:bb:cc:dd:ee:01'
	option leasetime '2d'

config host
	option name 'multi'
	list mac 'aa:bb:cc:dd:ee:02'
	list mac 'aa:bb:cc:dd:ee:03'
	option leasetime "30m"

config host
	option name 'spaced'
	option mac 'aa:bb:cc:dd:ee:04 aa:bb:cc:dd:ee:05'
	option leasetime infinite

config host
	option name 'nolease'
	option mac 'aa:bb:cc:dd:ee:06'
`

func TestParseUCI(t *testing.T) {
	t.Parallel()

	sections, err := dhcp.ParseUCI(strings.NewReader(uciDHCP))
	require.NoError(t, err)
	require.Len(t, sections, 7)

	assert.Equal(t, "dnsmasq", sections[0].Type)
	assert.Empty(t, sections[0].Name)
	assert.Equal(t, "/lan/", sections[0].Option("local"))

	assert.Equal(t, "dhcp", sections[1].Type)
	assert.Equal(t, "lan", sections[1].Name)
	assert.Equal(t, "12h", sections[1].Option("leasetime"))

	assert.Equal(t, []string{"aa:bb:cc:dd:ee:02", "aa:bb:cc:dd:ee:03"}, sections[4].Options["mac"])
	assert.Equal(t, "30m", sections[4].Option("leasetime"))
	assert.Empty(t, sections[6].Option("leasetime"))
}

func TestLeaseDurationsFrom(t *testing.T) {
	t.Parallel()

	sections, err := dhcp.ParseUCI(strings.NewReader(uciDHCP))
	require.NoError(t, err)

	d := dhcp.LeaseDurationsFrom(sections, "lan")

	assert.Equal(t, "12h", d.Default)
	assert.Equal(t, map[string]string{
		"AA:BB:CC:DD:EE:01": "2d",
		"AA:BB:CC:DD:EE:02": "30m",
		"AA:BB:CC:DD:EE:03": "30m",
		"AA:BB:CC:DD:EE:04": "infinite",
		"AA:BB:CC:DD:EE:05": "infinite",
	}, d.Hosts)

	assert.Equal(t, "1h", dhcp.LeaseDurationsFrom(sections, "guest").Default)
}

func TestReadLeaseDurations(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dhcp")
	require.NoError(t, os.WriteFile(path, []byte(uciDHCP), 0o600))

	d, err := dhcp.ReadLeaseDurations(path, "lan")
	require.NoError(t, err)
	assert.Equal(t, "12h", d.Default)

	_, err = dhcp.ReadLeaseDurations(filepath.Join(t.TempDir(), "missing"), "lan")
	require.Error(t, err)
}
