package utils

import "testing"

func TestStormScriptsCompile(t *testing.T) {
	// Compile-time smoke test: scripts should be initialized.
	if stormAcquireScript == nil || stormReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

func TestCacheHelpersRejectNilClient(t *testing.T) {
	if err := CacheSetString(nil, nil, "k", "v", 1); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := CacheGetString(nil, nil, "k"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
