package types_test

import (
	"errors"
	"testing"

	"github.com/gmeeker/fatbuild/pkg/types"
)

func TestFatArchSet_Validate(t *testing.T) {
	tests := []struct {
		name    string
		set     types.FatArchSet
		wantErr bool
	}{
		{
			name:    "two distinct archs",
			set:     types.FatArchSet{"x86_64", "arm64"},
			wantErr: false,
		},
		{
			name:    "single arch",
			set:     types.FatArchSet{"x86_64"},
			wantErr: false,
		},
		{
			name:    "empty set",
			set:     types.FatArchSet{},
			wantErr: true,
		},
		{
			name:    "nil set",
			set:     nil,
			wantErr: true,
		},
		{
			name:    "duplicate arch",
			set:     types.FatArchSet{"arm64", "arm64"},
			wantErr: true,
		},
		{
			name:    "empty identifier",
			set:     types.FatArchSet{"x86_64", ""},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.set.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFatArchSet_IsFat(t *testing.T) {
	tests := []struct {
		name string
		set  types.FatArchSet
		want bool
	}{
		{"two archs", types.FatArchSet{"x86_64", "arm64"}, true},
		{"three archs", types.FatArchSet{"x86_64", "arm64", "armv7"}, true},
		{"one arch", types.FatArchSet{"x86_64"}, false},
		{"nil", nil, false},
		{"duplicates only", types.FatArchSet{"arm64", "arm64"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.set.IsFat(); got != tt.want {
				t.Errorf("IsFat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFatArchSet_Index(t *testing.T) {
	set := types.FatArchSet{"x86_64", "arm64"}

	if got := set.Index("arm64"); got != 1 {
		t.Errorf("Index(arm64) = %d, want 1", got)
	}
	if got := set.Index("riscv64"); got != -1 {
		t.Errorf("Index(riscv64) = %d, want -1", got)
	}
	if !set.Contains("x86_64") {
		t.Error("expected set to contain x86_64")
	}
}

func TestPlatform_SupportsUniversalBinaries(t *testing.T) {
	tests := []struct {
		platform types.Platform
		want     bool
	}{
		{types.PlatformMacOS, true},
		{types.PlatformIOS, true},
		{types.PlatformTVOS, true},
		{types.PlatformWatchOS, true},
		{types.PlatformVisionOS, true},
		{types.PlatformLinux, false},
		{types.PlatformWindows, false},
		{types.Platform("freebsd"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.platform), func(t *testing.T) {
			if got := tt.platform.SupportsUniversalBinaries(); got != tt.want {
				t.Errorf("SupportsUniversalBinaries() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequest_Clone_Independence(t *testing.T) {
	req := &types.Request{
		Name:        "zlib",
		Platform:    types.PlatformMacOS,
		Archs:       types.FatArchSet{"x86_64", "arm64"},
		Environment: map[string]string{"CFLAGS": "-O2"},
		Options: map[string]interface{}{
			"shared": true,
			"defs":   []interface{}{"A", "B"},
			"nested": map[string]interface{}{"key": "value"},
		},
	}

	clone, err := req.Clone()
	if err != nil {
		t.Fatalf("Clone() failed: %v", err)
	}

	clone.Archs[0] = "riscv64"
	clone.Environment["CFLAGS"] = "-O0"
	clone.Options["shared"] = false
	clone.Options["nested"].(map[string]interface{})["key"] = "mutated"
	clone.Options["defs"].([]interface{})[0] = "mutated"

	if req.Archs[0] != "x86_64" {
		t.Error("mutating clone archs leaked into original")
	}
	if req.Environment["CFLAGS"] != "-O2" {
		t.Error("mutating clone environment leaked into original")
	}
	if req.Options["shared"] != true {
		t.Error("mutating clone options leaked into original")
	}
	if req.Options["nested"].(map[string]interface{})["key"] != "value" {
		t.Error("mutating nested clone option leaked into original")
	}
	if req.Options["defs"].([]interface{})[0] != "A" {
		t.Error("mutating clone option slice leaked into original")
	}
}

func TestRequest_Clone_NotCloneable(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
	}{
		{"function value", func() {}},
		{"channel value", make(chan int)},
		{"pointer value", &struct{}{}},
		{"int-keyed map", map[int]string{1: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &types.Request{
				Name:    "broken",
				Options: map[string]interface{}{"handle": tt.value},
			}

			_, err := req.Clone()
			if err == nil {
				t.Fatal("expected clone to fail")
			}
			if !errors.Is(err, types.ErrNotCloneable) {
				t.Errorf("expected ErrNotCloneable, got %v", err)
			}
		})
	}
}

func TestRequest_ArchSensitiveID(t *testing.T) {
	req := &types.Request{}
	if !req.ArchSensitiveID() {
		t.Error("expected default to be arch-sensitive")
	}

	insensitive := false
	req.ArchInPackageID = &insensitive
	if req.ArchSensitiveID() {
		t.Error("expected explicit false to disable arch sensitivity")
	}
}
