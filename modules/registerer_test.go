// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"testing"

	"github.com/luxfi/geth/common"
)

func TestReservedAddress(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"0x0000000000000000000000000000000000009100", true},
		{"0x0000000000000000000000000000000000009110", true},
		{"0x00000000000000000000000000000000000091ff", true},
		{"0x0000000000000000000000000000000000009200", false},
		{"0x00000000000000000000000000000000000090ff", false},
	}
	for _, tt := range tests {
		if got := ReservedAddress(common.HexToAddress(tt.addr)); got != tt.want {
			t.Errorf("ReservedAddress(%s) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestRegisterModuleRejectsOutOfRange(t *testing.T) {
	err := RegisterModule(Module{
		ConfigKey: "outOfRange",
		Address:   common.HexToAddress("0x0000000000000000000000000000000000001234"),
	})
	if err == nil {
		t.Fatal("expected rejection for address outside reserved ranges")
	}
}

func TestRegisterModuleRejectsDuplicates(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000091f0")
	if err := RegisterModule(Module{ConfigKey: "dupTestA", Address: addr}); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := RegisterModule(Module{ConfigKey: "dupTestA", Address: common.HexToAddress("0x00000000000000000000000000000000000091f1")}); err == nil {
		t.Fatal("duplicate config key accepted")
	}
	if err := RegisterModule(Module{ConfigKey: "dupTestB", Address: addr}); err == nil {
		t.Fatal("duplicate address accepted")
	}
}

func TestRegisteredModulesSortedByAddress(t *testing.T) {
	if err := RegisterModule(Module{
		ConfigKey: "sortTestHigh",
		Address:   common.HexToAddress("0x00000000000000000000000000000000000091fe"),
	}); err != nil {
		t.Fatal(err)
	}
	if err := RegisterModule(Module{
		ConfigKey: "sortTestLow",
		Address:   common.HexToAddress("0x00000000000000000000000000000000000091a0"),
	}); err != nil {
		t.Fatal(err)
	}

	mods := RegisteredModules()
	for i := 1; i < len(mods); i++ {
		if mods[i-1].Address.Hex() >= mods[i].Address.Hex() {
			t.Fatalf("modules not sorted: %s before %s", mods[i-1].Address, mods[i].Address)
		}
	}

	if _, ok := GetPrecompileModule("sortTestLow"); !ok {
		t.Fatal("lookup by key failed")
	}
	if _, ok := GetPrecompileModuleByAddress(common.HexToAddress("0x00000000000000000000000000000000000091a0")); !ok {
		t.Fatal("lookup by address failed")
	}
}
