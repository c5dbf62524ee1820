package feeds_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bavix/presence/internal/feeds"
)

type fakeExchanger struct {
	names map[string]string
	calls atomic.Int32
}

func (f *fakeExchanger) ExchangeContext(_ context.Context, m *dns.Msg, _ string) (*dns.Msg, time.Duration, error) {
	f.calls.Add(1)

	resp := new(dns.Msg)
	resp.SetReply(m)

	q := m.Question[0]

	name, ok := f.names[q.Name]
	if !ok {
		resp.Rcode = dns.RcodeNameError

		return resp, time.Millisecond, nil
	}

	resp.Answer = append(resp.Answer, &dns.PTR{
		Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: 60},
		Ptr: name,
	})

	return resp, time.Millisecond, nil
}

func TestPTRResolver(t *testing.T) {
	t.Parallel()

	ex := &fakeExchanger{names: map[string]string{"10.1.168.192.in-addr.arpa.": "laptop.lan."}}
	r := feeds.NewPTRResolverWithClient("", ex)

	name, err := r.LookupAddr(context.Background(), "192.168.1.10")
	require.NoError(t, err)
	assert.Equal(t, "laptop", name)

	name, err = r.LookupAddr(context.Background(), "192.168.1.10")
	require.NoError(t, err)
	assert.Equal(t, "laptop", name)
	assert.Equal(t, int32(1), ex.calls.Load(), "second lookup is cached")
}

func TestPTRResolverMissCached(t *testing.T) {
	t.Parallel()

	ex := &fakeExchanger{names: map[string]string{}}
	r := feeds.NewPTRResolverWithClient("192.168.1.1:53", ex)

	_, err := r.LookupAddr(context.Background(), "192.168.1.99")
	require.Error(t, err)

	_, err = r.LookupAddr(context.Background(), "192.168.1.99")
	require.Error(t, err)
	assert.Equal(t, int32(1), ex.calls.Load())
}

func TestPTRResolverBadAddress(t *testing.T) {
	t.Parallel()

	r := feeds.NewPTRResolverWithClient("", &fakeExchanger{})

	_, err := r.LookupAddr(context.Background(), "not-an-ip")
	require.Error(t, err)
}
