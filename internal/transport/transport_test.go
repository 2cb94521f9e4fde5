package transport

import (
	"net"
	"testing"
)

func TestDialTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	echoed := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 16)
		n, _ := conn.Read(buf)
		echoed <- buf[:n]
	}()

	c, err := DialTCP(ln.Addr().String())
	if err != nil {
		t.Fatalf("DialTCP => %v", err)
	}
	defer c.Close()

	if c.Kind() != "tcp" {
		t.Errorf("Kind => %q; want tcp", c.Kind())
	}
	if _, err := c.Write([]byte{0xA7, 0xB3}); err != nil {
		t.Fatalf("Write => %v", err)
	}
	if got := <-echoed; len(got) != 2 || got[0] != 0xA7 {
		t.Errorf("peer received % X", got)
	}
}

func TestDialTCPNoAddr(t *testing.T) {
	if _, err := DialTCP("  "); err == nil {
		t.Error("DialTCP with blank address => nil error")
	}
}

func TestOpenUnknownKind(t *testing.T) {
	if _, err := Open(Config{Kind: "carrier-pigeon"}); err == nil {
		t.Error("Open with unknown kind => nil error")
	}
}

func TestOpenKindAliases(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	for _, kind := range []string{"tcp", "TCP", " ethernet "} {
		c, err := Open(Config{Kind: kind, Addr: ln.Addr().String()})
		if err != nil {
			t.Errorf("Open(%q) => %v", kind, err)
			continue
		}
		c.Close()
	}
}
