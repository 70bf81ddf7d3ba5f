package target

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portscout/internal/errors"
)

// fakeResolver resolves every host in known and fails everything else,
// counting lookups so tests can assert when resolution is skipped.
type fakeResolver struct {
	known   map[string][]string
	lookups int
}

func (r *fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	r.lookups++
	if addrs, ok := r.known[host]; ok {
		return addrs, nil
	}
	return nil, fmt.Errorf("lookup %s: no such host", host)
}

func newTestExpander(known map[string][]string) (*Expander, *fakeResolver) {
	r := &fakeResolver{known: known}
	return NewExpanderWithResolver(r), r
}

func TestExpandLiterals(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		expected []string
	}{
		{
			name:     "IPv4 literal",
			token:    "192.168.1.10",
			expected: []string{"192.168.1.10"},
		},
		{
			name:     "IPv6 literal",
			token:    "::1",
			expected: []string{"::1"},
		},
		{
			name:     "surrounding whitespace trimmed",
			token:    "  10.0.0.1  ",
			expected: []string{"10.0.0.1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expander, resolver := newTestExpander(nil)
			hosts, err := expander.Expand(context.Background(), tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, hosts)
			assert.Zero(t, resolver.lookups, "IP literals must not hit the resolver")
		})
	}
}

func TestExpandHostname(t *testing.T) {
	expander, resolver := newTestExpander(map[string][]string{
		"scanme.example.org": {"198.51.100.7"},
	})

	hosts, err := expander.Expand(context.Background(), "scanme.example.org")
	require.NoError(t, err)

	// The token itself is scanned, resolution only validates it.
	assert.Equal(t, []string{"scanme.example.org"}, hosts)
	assert.Equal(t, 1, resolver.lookups)
}

func TestExpandHostnameResolutionFailure(t *testing.T) {
	expander, _ := newTestExpander(nil)

	hosts, err := expander.Expand(context.Background(), "nosuchhost.invalid")
	require.Error(t, err)
	assert.Nil(t, hosts)
	assert.True(t, errors.IsCode(err, errors.CodeResolution))
	assert.Equal(t, "nosuchhost.invalid", errors.GetTarget(err))
}

func TestExpandCIDR(t *testing.T) {
	expander, _ := newTestExpander(nil)

	hosts, err := expander.Expand(context.Background(), "192.168.1.0/30")
	require.NoError(t, err)

	// Network and broadcast addresses are included, ascending.
	assert.Equal(t, []string{
		"192.168.1.0",
		"192.168.1.1",
		"192.168.1.2",
		"192.168.1.3",
	}, hosts)
}

func TestExpandCIDRAddressCounts(t *testing.T) {
	tests := []struct {
		block    string
		expected int
	}{
		{"10.0.0.0/32", 1},
		{"10.0.0.0/31", 2},
		{"10.0.0.0/24", 256},
		{"10.0.0.0/22", 1024},
		{"10.0.0.0/16", 65536},
	}

	expander, _ := newTestExpander(nil)
	for _, tt := range tests {
		t.Run(tt.block, func(t *testing.T) {
			hosts, err := expander.Expand(context.Background(), tt.block)
			require.NoError(t, err)
			assert.Len(t, hosts, tt.expected)
		})
	}
}

func TestExpandCIDRNormalizesToNetworkAddress(t *testing.T) {
	expander, _ := newTestExpander(nil)

	hosts, err := expander.Expand(context.Background(), "192.168.1.77/30")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"192.168.1.76",
		"192.168.1.77",
		"192.168.1.78",
		"192.168.1.79",
	}, hosts)
}

func TestExpandCIDRTooLarge(t *testing.T) {
	expander, resolver := newTestExpander(nil)

	for _, block := range []string{"10.0.0.0/8", "10.0.0.0/15", "0.0.0.0/0"} {
		t.Run(block, func(t *testing.T) {
			hosts, err := expander.Expand(context.Background(), block)
			require.Error(t, err)
			assert.Nil(t, hosts)
			assert.True(t, errors.IsCode(err, errors.CodeRangeTooLarge))
			assert.Equal(t, block, errors.GetTarget(err))
		})
	}
	assert.Zero(t, resolver.lookups, "oversized blocks must be rejected before any network activity")
}

func TestExpandInvalidTokens(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"malformed CIDR", "192.168.1.0/33"},
		{"garbage with slash", "not/a/network"},
		{"IPv6 CIDR", "2001:db8::/64"},
	}

	expander, _ := newTestExpander(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hosts, err := expander.Expand(context.Background(), tt.token)
			require.Error(t, err)
			assert.Nil(t, hosts)
			assert.True(t, errors.IsCode(err, errors.CodeTargetInvalid))
		})
	}
}

func TestExpandAll(t *testing.T) {
	expander, _ := newTestExpander(map[string][]string{
		"db.example.org": {"10.0.0.9"},
	})

	hosts, errs := expander.ExpandAll(context.Background(),
		[]string{"192.168.1.8/30", "db.example.org", "192.168.1.20"})
	assert.Empty(t, errs)
	assert.Equal(t, []string{
		"192.168.1.8",
		"192.168.1.9",
		"192.168.1.10",
		"192.168.1.11",
		"db.example.org",
		"192.168.1.20",
	}, hosts)
}

func TestExpandAllDeduplicatesAcrossTokens(t *testing.T) {
	expander, _ := newTestExpander(nil)

	hosts, errs := expander.ExpandAll(context.Background(),
		[]string{"192.168.1.0/31", "192.168.1.1", "192.168.1.0/30"})
	assert.Empty(t, errs)

	// First occurrence wins; overlapping tokens never duplicate a host.
	assert.Equal(t, []string{
		"192.168.1.0",
		"192.168.1.1",
		"192.168.1.2",
		"192.168.1.3",
	}, hosts)
}

func TestExpandAllCollectsPerTokenErrors(t *testing.T) {
	expander, _ := newTestExpander(map[string][]string{
		"good.example.org": {"10.0.0.1"},
	})

	hosts, errs := expander.ExpandAll(context.Background(),
		[]string{"bad.invalid", "good.example.org", "10.0.0.0/8"})

	// Failing tokens are reported without stopping their siblings.
	assert.Equal(t, []string{"good.example.org"}, hosts)
	require.Len(t, errs, 2)
	assert.True(t, errors.IsCode(errs[0], errors.CodeResolution))
	assert.True(t, errors.IsCode(errs[1], errors.CodeRangeTooLarge))
}

func TestExpandAllAllTokensFail(t *testing.T) {
	expander, _ := newTestExpander(nil)

	hosts, errs := expander.ExpandAll(context.Background(),
		[]string{"one.invalid", "two.invalid"})
	assert.Empty(t, hosts)
	assert.Len(t, errs, 2)
}
