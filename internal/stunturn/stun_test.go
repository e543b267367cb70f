package stunturn

import (
	"net"
	"testing"
	"time"

	"github.com/pion/stun/v2"
)

// fakeSTUNServer answers exactly one Binding Request with a
// XOR-MAPPED-ADDRESS pointing back at the request's source, then exits.
func fakeSTUNServer(t *testing.T) net.Addr {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	go func() {
		defer conn.Close()
		buf := make([]byte, 1500)
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		req := &stun.Message{Raw: append([]byte(nil), buf[:n]...)}
		if err := req.Decode(); err != nil {
			return
		}

		udpAddr := addr.(*net.UDPAddr)
		resp, err := stun.Build(req, stun.BindingSuccess,
			&stun.XORMappedAddress{IP: udpAddr.IP, Port: udpAddr.Port},
			stun.Fingerprint)
		if err != nil {
			return
		}
		_, _ = conn.WriteTo(resp.Raw, addr)
	}()

	return conn.LocalAddr()
}

func TestSTUNClientBindResolvesMappedAddress(t *testing.T) {
	serverAddr := fakeSTUNServer(t)

	clientConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer clientConn.Close()

	client := NewSTUNClient(clientConn)
	client.timeout = time.Second

	mapped, err := client.Bind(serverAddr)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if !mapped.IP.IsLoopback() {
		t.Fatalf("expected loopback mapped address, got %v", mapped.IP)
	}
	if mapped.Port == 0 {
		t.Fatal("expected a nonzero mapped port")
	}
}

func TestSTUNClientBindTimesOutWithNoServer(t *testing.T) {
	clientConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer clientConn.Close()

	deadAddr, err := net.ResolveUDPAddr("udp", "127.0.0.1:1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	client := NewSTUNClient(clientConn)
	client.timeout = 50 * time.Millisecond
	client.retries = 1

	_, err = client.Bind(deadAddr)
	if err == nil {
		t.Fatal("expected an error when no server answers")
	}
}
