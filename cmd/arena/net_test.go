package main

import (
	"net"
	"testing"
)

func TestGuessIpAddress(t *testing.T) {
	base := net.IP{192, 168, 0, 1}
	tests := []struct {
		partial  string
		expected net.IP
	}{
		{"42", net.IP{192, 168, 0, 42}},
		{"15.42", net.IP{192, 168, 15, 42}},
		{"10.100.15.42", net.IP{10, 100, 15, 42}},
		{"", base},
	}
	for _, test := range tests {
		actual, err := guessIpAddress(base, test.partial)
		if err != nil {
			t.Fatalf("%q: %v", test.partial, err)
		}
		if !actual.Equal(test.expected) {
			t.Errorf("%q: expected %v, actual %v", test.partial, test.expected, actual)
		}
	}
	for _, bad := range []string{"300", "1.2.3.4.5", "a.b"} {
		if _, err := guessIpAddress(base, bad); err == nil {
			t.Errorf("%q: expected an error", bad)
		}
	}
}

func TestBoardURL(t *testing.T) {
	base := net.IP{192, 168, 0, 1}
	tests := []struct {
		input    string
		secure   bool
		expected string
	}{
		{"42", false, "http://192.168.0.42:8080"},
		{"42:9000", false, "http://192.168.0.42:9000"},
		{"localhost", false, "http://localhost:8080"},
		{"arena.local:443", true, "https://arena.local:443"},
		{"https://arena.local:8443/", false, "https://arena.local:8443"},
	}
	for _, test := range tests {
		actual, err := boardURL(test.input, base, test.secure)
		if err != nil {
			t.Fatalf("%q: %v", test.input, err)
		}
		if actual != test.expected {
			t.Errorf("%q: expected %s, actual %s", test.input, test.expected, actual)
		}
	}
	for _, bad := range []string{"", "ftp://arena.local", "999"} {
		if _, err := boardURL(bad, base, false); err == nil {
			t.Errorf("%q: expected an error", bad)
		}
	}
}

func TestLocalIP(t *testing.T) {
	if ip := localIP(); ip.To4() == nil {
		t.Fatalf("expected an IPv4 address, got %v", ip)
	}
}
