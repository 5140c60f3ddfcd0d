package ui

import (
	"strings"
	"testing"

	"hirechat/internal/stomp"
	"hirechat/internal/transport"
)

func TestViewLostFooter(t *testing.T) {
	m := New(Deps{Identity: transport.Identity{Profile: stomp.Profile{Name: "Ana"}}})
	m.width, m.height = 40, 20
	m.lost = true

	out := m.View()
	if !strings.Contains(out, "connection lost · restart to reconnect") {
		t.Errorf("lost footer missing or reworded:\n%s", out)
	}
	if strings.Contains(out, "—") {
		t.Errorf("view copy uses an em-dash, want the dot separator:\n%s", out)
	}
	if !strings.Contains(out, "Ana") {
		t.Errorf("header missing identity name:\n%s", out)
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello there", 6, "hello…"},
		{"héllo wörld", 4, "hél…"},
		{"x", 0, ""},
	}
	for _, c := range cases {
		if got := truncate(c.in, c.max); got != c.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", c.in, c.max, got, c.want)
		}
	}
}

func TestStatusDot(t *testing.T) {
	if statusDot(stomp.StatusOnline) == statusDot(stomp.StatusOffline) {
		t.Error("online and offline dots should differ")
	}
}
