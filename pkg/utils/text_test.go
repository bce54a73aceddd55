package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if Truncate("héllo wörld", 4) != "héll..." {
		t.Errorf("multi-byte runes: got %s", Truncate("héllo wörld", 4))
	}
}

func TestNormalizeKey(t *testing.T) {
	if got := NormalizeKey("  Python   Developer\t"); got != "python developer" {
		t.Errorf("got %q", got)
	}
}
