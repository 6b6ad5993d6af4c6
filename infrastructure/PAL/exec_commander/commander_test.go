package exec_commander

import (
	"strings"
	"testing"
)

func TestExecCommander_CombinedOutput(t *testing.T) {
	c := NewExecCommander()
	out, err := c.CombinedOutput("echo", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(out), "hello") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestExecCommander_CombinedOutput_Error(t *testing.T) {
	c := NewExecCommander()
	if _, err := c.CombinedOutput("a-command-that-does-not-exist"); err == nil {
		t.Fatal("expected error for unknown command")
	}
}
