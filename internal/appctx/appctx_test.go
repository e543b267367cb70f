package appctx

import (
	"testing"

	"github.com/nzcore-project/nzcore/internal/nodeconfig"
)

func TestNewBuildsFullGraph(t *testing.T) {
	dir := t.TempDir()
	cfg := nodeconfig.Default()

	ac, err := New(Options{EnvDir: dir, Cfg: cfg})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer ac.Close()

	if ac.RoutingTable == nil || ac.Kademlia == nil || ac.Pool == nil {
		t.Fatal("expected routing table, kademlia node, and pool to be wired")
	}
	if ac.NodeID == ([32]byte{}) {
		t.Fatal("expected a nonzero node id")
	}

	again, err := New(Options{EnvDir: dir, Cfg: cfg})
	if err != nil {
		t.Fatalf("second New failed: %v", err)
	}
	defer again.Close()
	if again.NodeID != ac.NodeID {
		t.Fatal("expected identity to be stable across restarts from the same env dir")
	}
}

func TestNewUnlocksMasterKeyFromPassword(t *testing.T) {
	dir := t.TempDir()
	cfg := nodeconfig.Default()
	password := []byte("correct horse battery staple")

	first, err := New(Options{EnvDir: dir, Cfg: cfg, Password: password})
	if err != nil {
		t.Fatalf("New with password failed: %v", err)
	}
	defer first.Close()

	second, err := New(Options{EnvDir: dir, Cfg: cfg, Password: password})
	if err != nil {
		t.Fatalf("second New with password failed: %v", err)
	}
	defer second.Close()
	if second.NodeID != first.NodeID {
		t.Fatal("expected the same password to unlock the same identity across restarts")
	}

	if _, err := New(Options{EnvDir: dir, Cfg: cfg, Password: []byte("short")}); err == nil {
		t.Fatal("expected New to reject a too-short password")
	}
}
