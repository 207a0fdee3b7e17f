package config

import (
	"testing"
	"time"
)

func TestString(t *testing.T) {
	t.Setenv("CFG_TEST_STR", "value")
	if got := String("CFG_TEST_STR", "fallback"); got != "value" {
		t.Fatalf("got %q", got)
	}
	if got := String("CFG_TEST_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("got %q", got)
	}
}

func TestRequiredString(t *testing.T) {
	if _, err := RequiredString("CFG_TEST_REQUIRED_MISSING"); err == nil {
		t.Fatal("expected error for missing variable")
	}
	t.Setenv("CFG_TEST_REQUIRED", "x")
	v, err := RequiredString("CFG_TEST_REQUIRED")
	if err != nil || v != "x" {
		t.Fatalf("got %q, %v", v, err)
	}
}

func TestInt(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "42")
	if got := Int("CFG_TEST_INT", 7); got != 42 {
		t.Fatalf("got %d", got)
	}
	t.Setenv("CFG_TEST_INT_BAD", "not-a-number")
	if got := Int("CFG_TEST_INT_BAD", 7); got != 7 {
		t.Fatalf("got %d, want fallback", got)
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("CFG_TEST_DUR", "90s")
	if got := Duration("CFG_TEST_DUR", time.Minute); got != 90*time.Second {
		t.Fatalf("got %s", got)
	}
	t.Setenv("CFG_TEST_DUR_NEG", "-5s")
	if got := Duration("CFG_TEST_DUR_NEG", time.Minute); got != time.Minute {
		t.Fatalf("got %s, want fallback for non-positive duration", got)
	}
}

func TestPort(t *testing.T) {
	t.Setenv("CFG_TEST_PORT", "8084")
	p, err := Port("CFG_TEST_PORT", "8080")
	if err != nil || p != "8084" {
		t.Fatalf("got %q, %v", p, err)
	}
	t.Setenv("CFG_TEST_PORT_BAD", "99999")
	if _, err := Port("CFG_TEST_PORT_BAD", "8080"); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}
