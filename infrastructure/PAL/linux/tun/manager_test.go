package tun

import (
	"errors"
	"net/netip"
	"strings"
	"testing"

	"tunlink/infrastructure/settings"
)

type fakeCommander struct {
	calls  []string
	failOn string
}

func (f *fakeCommander) CombinedOutput(name string, args ...string) ([]byte, error) {
	call := name + " " + strings.Join(args, " ")
	f.calls = append(f.calls, call)
	if f.failOn != "" && strings.Contains(call, f.failOn) {
		return []byte("boom"), errors.New("exit status 1")
	}
	return nil, nil
}

func testTunSettings() settings.Tun {
	return settings.Tun{
		Name:    "tl0",
		Address: settings.AddrOf(netip.AddrFrom4([4]byte{10, 0, 0, 1})),
		Netmask: settings.AddrOf(netip.AddrFrom4([4]byte{255, 255, 255, 0})),
		MTU:     1400,
	}
}

func TestManager_CreateTunDevice_ConfiguresInterface(t *testing.T) {
	commander := &fakeCommander{}
	manager := NewManager(testTunSettings(), commander)

	// Device open fails without privileges; the ip invocations are the
	// observable contract here.
	_, _ = manager.CreateTunDevice()

	want := []string{
		"ip link delete tl0",
		"ip tuntap add dev tl0 mode tun",
		"ip addr add 10.0.0.1/24 dev tl0",
		"ip link set dev tl0 mtu 1400",
		"ip link set dev tl0 up",
	}
	if len(commander.calls) < len(want) {
		t.Fatalf("expected at least %d calls, got %v", len(want), commander.calls)
	}
	for i, expected := range want {
		if commander.calls[i] != expected {
			t.Fatalf("call %d: expected %q, got %q", i, expected, commander.calls[i])
		}
	}
}

func TestManager_CreateTunDevice_StopsOnFailure(t *testing.T) {
	commander := &fakeCommander{failOn: "tuntap add"}
	manager := NewManager(testTunSettings(), commander)

	if _, err := manager.CreateTunDevice(); err == nil {
		t.Fatal("expected error when interface creation fails")
	}
	for _, call := range commander.calls {
		if strings.Contains(call, "addr add") {
			t.Fatal("configuration must stop after a failed step")
		}
	}
}

func TestManager_DisposeTunDevices(t *testing.T) {
	commander := &fakeCommander{}
	manager := NewManager(testTunSettings(), commander)

	if err := manager.DisposeTunDevices(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(commander.calls) != 1 || commander.calls[0] != "ip link delete tl0" {
		t.Fatalf("unexpected calls: %v", commander.calls)
	}
}
