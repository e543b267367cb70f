package connection

import (
	"fmt"
	"strconv"

	ma "github.com/multiformats/go-multiaddr"
)

// FormatPeerMultiaddr renders a UDP/IPv4 contact address in multiaddr form
// (e.g. "/ip4/203.0.113.9/udp/4001"), the wire format Kademlia contacts use
// when they are persisted or exchanged across a FIND_NODE response so that
// transport family is self-describing rather than implied by context.
func FormatPeerMultiaddr(host string, port int) (string, error) {
	addr, err := ma.NewMultiaddr(fmt.Sprintf("/ip4/%s/udp/%d", host, port))
	if err != nil {
		return "", fmt.Errorf("connection: format multiaddr: %w", err)
	}
	return addr.String(), nil
}

// ParsePeerMultiaddr extracts the host and port a FormatPeerMultiaddr
// string encodes.
func ParsePeerMultiaddr(s string) (host string, port int, err error) {
	addr, err := ma.NewMultiaddr(s)
	if err != nil {
		return "", 0, fmt.Errorf("connection: parse multiaddr: %w", err)
	}
	host, err = addr.ValueForProtocol(ma.P_IP4)
	if err != nil {
		host, err = addr.ValueForProtocol(ma.P_IP6)
		if err != nil {
			return "", 0, fmt.Errorf("connection: multiaddr has no ip4/ip6 component: %w", err)
		}
	}
	portStr, err := addr.ValueForProtocol(ma.P_UDP)
	if err != nil {
		portStr, err = addr.ValueForProtocol(ma.P_TCP)
		if err != nil {
			return "", 0, fmt.Errorf("connection: multiaddr has no udp/tcp component: %w", err)
		}
	}
	port, err = strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("connection: invalid port in multiaddr: %w", err)
	}
	return host, port, nil
}
