package netcheck

import (
	"context"
	"net"
	"testing"
)

func TestHostPort(t *testing.T) {
	cases := map[string]string{
		"https://raw.githubusercontent.com/x": "raw.githubusercontent.com:443",
		"http://mirror.local/components":      "mirror.local:80",
		"http://127.0.0.1:8080/":              "127.0.0.1:8080",
	}
	for in, want := range cases {
		if got := hostPort(in); got != want {
			t.Errorf("hostPort(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDialer_Connected(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	d := NewDialer("http://" + ln.Addr().String())
	if !d.Connected(context.Background()) {
		t.Error("expected connectivity to local listener")
	}
}

func TestStatic(t *testing.T) {
	if Static(false).Connected(context.Background()) {
		t.Error("Static(false) should report offline")
	}
}
