// pkg/envvar/envvar_test.go
package envvar

import (
	"errors"
	"os/exec"
	"strings"
	"testing"
)

func TestLookupReflectsLiveEnvironment(t *testing.T) {
	t.Setenv("RUSTPROBE_TEST_LOOKUP", "first")

	v, ok := Lookup("RUSTPROBE_TEST_LOOKUP")
	if !ok {
		t.Fatal("expected variable to be set")
	}
	if v.Value != "first" {
		t.Errorf("value incorrect. Got: %q", v.Value)
	}

	t.Setenv("RUSTPROBE_TEST_LOOKUP", "second")
	v, _ = Lookup("RUSTPROBE_TEST_LOOKUP")
	if v.Value != "second" {
		t.Errorf("expected live value, got: %q", v.Value)
	}
}

func TestLookupDistinguishesEmptyFromUnset(t *testing.T) {
	t.Setenv("RUSTPROBE_TEST_EMPTY", "")

	v, ok := Lookup("RUSTPROBE_TEST_EMPTY")
	if !ok {
		t.Fatal("empty value should still count as set")
	}
	if v.Value != "" {
		t.Errorf("expected empty value, got: %q", v.Value)
	}

	if _, ok := Lookup("RUSTPROBE_TEST_DEFINITELY_UNSET"); ok {
		t.Error("unset variable reported as set")
	}
}

func TestRequireMissing(t *testing.T) {
	_, err := Require("RUSTPROBE_TEST_DEFINITELY_UNSET")
	if err == nil {
		t.Fatal("expected an error for an unset variable")
	}
	if !errors.Is(err, ErrNotSet) {
		t.Errorf("expected ErrNotSet, got: %v", err)
	}
	if !strings.Contains(err.Error(), "RUSTPROBE_TEST_DEFINITELY_UNSET") {
		t.Errorf("error should carry the key name. Got: %v", err)
	}
}

func TestRequirePresent(t *testing.T) {
	t.Setenv("RUSTPROBE_TEST_REQUIRE", "/some/path")

	v, err := Require("RUSTPROBE_TEST_REQUIRE")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if v.Key != "RUSTPROBE_TEST_REQUIRE" || v.Value != "/some/path" {
		t.Errorf("binding incorrect. Got: %+v", v)
	}
}

func TestApplyToAttachesWithoutTouchingOwnEnv(t *testing.T) {
	cmd := exec.Command("true")
	New("RUSTPROBE_TEST_APPLY", "value").ApplyTo(cmd)

	found := false
	for _, entry := range cmd.Env {
		if entry == "RUSTPROBE_TEST_APPLY=value" {
			found = true
		}
	}
	if !found {
		t.Error("binding not attached to the child command")
	}
	if _, ok := Lookup("RUSTPROBE_TEST_APPLY"); ok {
		t.Error("ApplyTo leaked into the calling process environment")
	}
}

func TestApplyToInheritsParentEnvironment(t *testing.T) {
	t.Setenv("RUSTPROBE_TEST_INHERIT", "kept")

	cmd := exec.Command("true")
	New("RUSTPROBE_TEST_APPLY", "value").ApplyTo(cmd)

	found := false
	for _, entry := range cmd.Env {
		if entry == "RUSTPROBE_TEST_INHERIT=kept" {
			found = true
		}
	}
	if !found {
		t.Error("child environment lost the inherited variables")
	}
}

func TestExportSetsProcessGlobal(t *testing.T) {
	t.Setenv("RUSTPROBE_TEST_EXPORT", "old")

	if err := New("RUSTPROBE_TEST_EXPORT", "new").Export(); err != nil {
		t.Fatalf("Export: %v", err)
	}
	v, _ := Lookup("RUSTPROBE_TEST_EXPORT")
	if v.Value != "new" {
		t.Errorf("value after Export = %q", v.Value)
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Var
		want bool
	}{
		{"same key and value", New("K", "v"), New("K", "v"), true},
		{"different value", New("K", "v"), New("K", "w"), false},
		{"different key", New("K", "v"), New("L", "v"), false},
		{"both differ", New("K", "v"), New("L", "w"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestString(t *testing.T) {
	if got := New("KEY", "value").String(); got != "KEY=value" {
		t.Errorf("String() = %q", got)
	}
}
