package feeds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/miekg/dns"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultDNSServer = "127.0.0.1:53"

	ptrCacheSize = 512
	ptrCacheTTL  = 5 * time.Minute
	ptrTimeout   = 2 * time.Second
)

var errNoPTR = errors.New("no PTR record")

// Exchanger sends one DNS query. *dns.Client satisfies it.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, addr string) (*dns.Msg, time.Duration, error)
}

// PTRResolver answers reverse lookups against the router's own resolver,
// which serves names for DHCP clients. Results, including misses, are cached.
type PTRResolver struct {
	server string
	client Exchanger

	cache *lru.LRU[string, string]
	sf    singleflight.Group
}

// NewPTRResolver queries server over UDP.
func NewPTRResolver(server string) *PTRResolver {
	return NewPTRResolverWithClient(server, &dns.Client{Net: "udp", Timeout: ptrTimeout})
}

// NewPTRResolverWithClient is NewPTRResolver with a custom exchanger.
func NewPTRResolverWithClient(server string, client Exchanger) *PTRResolver {
	if server == "" {
		server = DefaultDNSServer
	}

	return &PTRResolver{
		server: server,
		client: client,
		cache:  lru.NewLRU[string, string](ptrCacheSize, nil, ptrCacheTTL),
	}
}

// LookupAddr returns the first PTR name for ip without the trailing dot.
func (r *PTRResolver) LookupAddr(ctx context.Context, ip string) (string, error) {
	if name, ok := r.cache.Get(ip); ok {
		if name == "" {
			return "", fmt.Errorf("%w: %s", errNoPTR, ip)
		}

		return name, nil
	}

	v, err, _ := r.sf.Do(ip, func() (any, error) {
		return r.lookup(ctx, ip)
	})
	if err != nil {
		return "", err
	}

	name, _ := v.(string)
	if name == "" {
		return "", fmt.Errorf("%w: %s", errNoPTR, ip)
	}

	return name, nil
}

func (r *PTRResolver) lookup(ctx context.Context, ip string) (string, error) {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return "", err
	}

	q := new(dns.Msg)
	q.SetQuestion(arpa, dns.TypePTR)
	q.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, q, r.server)
	if err != nil {
		return "", err
	}

	if resp.Rcode != dns.RcodeSuccess && resp.Rcode != dns.RcodeNameError {
		return "", fmt.Errorf("ptr %s: %s", ip, dns.RcodeToString[resp.Rcode])
	}

	name := ""

	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			name = shortName(ptr.Ptr)

			break
		}
	}

	r.cache.Add(ip, name)

	return name, nil
}

// shortName strips the trailing dot and the local search domain, so
// "laptop.lan." becomes "laptop".
func shortName(fqdn string) string {
	name := strings.TrimSuffix(fqdn, ".")
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}

	return name
}
