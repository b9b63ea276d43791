package selfaddr

import "testing"

func TestDetectOverride(t *testing.T) {
	addr, err := Detect("203.0.113.9")
	if err != nil {
		t.Fatalf("Detect() unexpected error: %v", err)
	}
	if addr.IP != "203.0.113.9" {
		t.Errorf("Detect() IP = %q, want %q", addr.IP, "203.0.113.9")
	}
	if addr.Hostname == "" {
		t.Errorf("Detect() Hostname is empty")
	}
}

func TestDetectAutoNonEmpty(t *testing.T) {
	addr, err := Detect("")
	if err != nil {
		t.Fatalf("Detect() unexpected error: %v", err)
	}
	if addr.Hostname == "" {
		t.Errorf("Detect() Hostname is empty")
	}
}
