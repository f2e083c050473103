package main

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

const defaultBoardPort = 8080

// guessIpAddress takes a base IP address and a partial address string,
// and fills in the missing octets from the base address.
func guessIpAddress(baseAddress net.IP, partialAddr string) (net.IP, error) {
	base := baseAddress.To4()
	if base == nil {
		return nil, fmt.Errorf("%v is not an IPv4 address", baseAddress)
	}
	ip := make(net.IP, len(base))
	copy(ip, base)
	octets := strings.Split(partialAddr, ".")
	if len(octets) == 1 && octets[0] == "" {
		return ip, nil
	}
	if len(octets) > len(ip) {
		return nil, fmt.Errorf("too many octets in %q", partialAddr)
	}
	for i := 0; i < len(octets); i++ {
		octet, err := strconv.ParseUint(octets[i], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("octet %q: %w", octets[i], err)
		}
		ip[len(ip)-len(octets)+i] = byte(octet)
	}
	return ip, nil
}

// localIP returns the first non-loopback IPv4 address of the host, or the
// loopback address when there is none.
func localIP() net.IP {
	ifaces, err := net.Interfaces()
	if err != nil {
		return net.IPv4(127, 0, 0, 1).To4()
	}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := ifi.Addrs()
		for _, a := range addrs {
			var ip net.IP
			switch v := a.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip4 := ip.To4(); ip4 != nil && !ip4.IsLoopback() {
				return ip4
			}
		}
	}
	return net.IPv4(127, 0, 0, 1).To4()
}

// splitHostPort splits an address into host and port, using defaultPort if no port is specified.
func splitHostPort(addr string, defaultPort int) (string, string, error) {
	ipaddr, port, err := net.SplitHostPort(addr)
	if err != nil {
		addr = addr + ":" + strconv.Itoa(defaultPort)
		ipaddr, port, err = net.SplitHostPort(addr)
		if err != nil {
			return "", "", err
		}
	}
	return ipaddr, port, nil
}

// boardURL turns what the player typed into a board URL. Full URLs are kept;
// a bare host or partial IP is completed from base and the default port.
func boardURL(input string, base net.IP, secure bool) (string, error) {
	input = strings.TrimSpace(input)
	if strings.Contains(input, "://") {
		u, err := url.Parse(input)
		if err != nil {
			return "", err
		}
		if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
			return "", fmt.Errorf("%q is not an http url", input)
		}
		return strings.TrimRight(input, "/"), nil
	}
	host, port, err := splitHostPort(input, defaultBoardPort)
	if err != nil {
		return "", err
	}
	if host == "" {
		return "", errors.New("missing board address")
	}
	if looksLikePartialIP(host) {
		ip, err := guessIpAddress(base, host)
		if err != nil {
			return "", err
		}
		host = ip.String()
	}
	scheme := "http"
	if secure {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(host, port), nil
}

func looksLikePartialIP(host string) bool {
	for _, r := range host {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}
