// Package target expands raw target tokens into concrete scan hosts.
// A token is an IP literal, a resolvable hostname, or an IPv4 CIDR
// block; expansion happens entirely before any probe is dispatched.
package target

import (
	"context"
	"encoding/binary"
	"net"
	"strings"

	"github.com/anstrom/portscout/internal/errors"
)

// MinPrefixLen is the shortest CIDR prefix the expander accepts. A /16
// block is 65536 addresses; anything wider is rejected before expansion
// so a mistyped prefix cannot explode the task set.
const MinPrefixLen = 16

// Resolver looks hostnames up. It matches net.Resolver's LookupHost so
// the system resolver drops straight in.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Expander turns target tokens into ordered host lists.
type Expander struct {
	resolver Resolver
}

// NewExpander creates an expander backed by the system resolver.
func NewExpander() *Expander {
	return &Expander{resolver: net.DefaultResolver}
}

// NewExpanderWithResolver creates an expander with a custom resolver.
func NewExpanderWithResolver(r Resolver) *Expander {
	return &Expander{resolver: r}
}

// ExpandAll expands every token, preserving token order and dropping
// duplicate hosts so each address is scanned once even when tokens
// overlap. Tokens that fail to expand are reported in the returned
// error list without stopping the remaining tokens; the caller decides
// whether an empty host list is fatal.
func (e *Expander) ExpandAll(ctx context.Context, tokens []string) ([]string, []error) {
	var hosts []string
	var errs []error

	seen := make(map[string]struct{})
	for _, token := range tokens {
		expanded, err := e.Expand(ctx, token)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, host := range expanded {
			if _, dup := seen[host]; dup {
				continue
			}
			seen[host] = struct{}{}
			hosts = append(hosts, host)
		}
	}
	return hosts, errs
}

// Expand expands one token. An IP literal or a hostname that resolves
// yields a single-element list; a CIDR block yields every address in
// the block in ascending order.
func (e *Expander) Expand(ctx context.Context, token string) ([]string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.ErrInvalidTarget(token)
	}

	if strings.Contains(token, "/") {
		return expandCIDR(token)
	}

	if ip := net.ParseIP(token); ip != nil {
		return []string{ip.String()}, nil
	}

	// Hostnames are validated by resolving them, but the token itself
	// is what gets scanned so reports keep the name the user gave.
	if _, err := e.resolver.LookupHost(ctx, token); err != nil {
		return nil, errors.ErrResolution(token, err)
	}
	return []string{token}, nil
}

// expandCIDR walks an IPv4 block from its network address through its
// broadcast address. Both ends are included: host discovery treats them
// as ordinary probe candidates, so a /24 always yields exactly 256
// hosts.
func expandCIDR(token string) ([]string, error) {
	_, ipnet, err := net.ParseCIDR(token)
	if err != nil {
		return nil, errors.ErrInvalidTarget(token)
	}

	ip4 := ipnet.IP.To4()
	if ip4 == nil {
		return nil, errors.NewScanErrorWithTarget(errors.CodeTargetInvalid,
			"only IPv4 CIDR blocks are supported", token)
	}

	ones, _ := ipnet.Mask.Size()
	if ones < MinPrefixLen {
		return nil, errors.ErrRangeTooLarge(token)
	}

	start := binary.BigEndian.Uint32(ip4)
	mask := binary.BigEndian.Uint32(net.IP(ipnet.Mask).To4())
	end := (start & mask) | ^mask

	hosts := make([]string, 0, end-start+1)
	for addr := start; ; addr++ {
		ip := make(net.IP, net.IPv4len)
		binary.BigEndian.PutUint32(ip, addr)
		hosts = append(hosts, ip.String())
		if addr == end {
			break
		}
	}
	return hosts, nil
}
