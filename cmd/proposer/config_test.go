package main

import "testing"

func TestDefaultConfig_FailsValidationWithoutKeys(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error: no beacon/relay/registry/keys configured")
	}
}

func TestValidate_RejectsUnknownStoreBackend(t *testing.T) {
	cfg := completeProposerConfig()
	cfg.StoreBackend = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown store backend")
	}
}

func TestValidate_AcceptsCompleteConfig(t *testing.T) {
	cfg := completeProposerConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidate_RequiresRegistryOrOursPubkeys(t *testing.T) {
	cfg := completeProposerConfig()
	cfg.RegistryURL = ""
	cfg.OursPubKeysHex = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error without registry-url or ours-pubkey")
	}
}

func completeProposerConfig() Config {
	cfg := DefaultConfig()
	cfg.BeaconPrimaryURL = "http://localhost:5052"
	cfg.RelayURL = "http://localhost:8080"
	cfg.OursPubKeysHex = []string{"aa"}
	cfg.ValidatorBLSSeedsHex = []string{"bb"}
	cfg.GatewayDelegatePubKeyHex = "cc"
	cfg.GatewayCommitterAddressHex = "0x0000000000000000000000000000000000000001"
	return cfg
}
