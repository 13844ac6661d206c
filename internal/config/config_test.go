package config

import (
	"testing"
)

func validConfig() *Config {
	return &Config{
		SolanaRPCURL: "https://api.mainnet-beta.solana.com",
		SolanaRPS:    10,
		BatchSize:    50,
		DelayMs:      10000,
		HTTPPort:     8080,
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_MissingRPCURL(t *testing.T) {
	cfg := validConfig()
	cfg.SolanaRPCURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for empty SOLANA_RPC_URL, got nil")
	}
}

func TestValidate_InvalidRPS(t *testing.T) {
	tests := []struct {
		name string
		rps  int
	}{
		{"zero", 0},
		{"negative", -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.SolanaRPS = tt.rps
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate() expected error for rps=%d, got nil", tt.rps)
			}
		})
	}
}

func TestValidate_InvalidBatchSize(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"zero", 0},
		{"negative", -1},
		{"over page limit", MaxSignaturePageSize + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.BatchSize = tt.size
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate() expected error for batchSize=%d, got nil", tt.size)
			}
		})
	}
}

func TestValidate_BatchSizeBoundaries(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"minimum valid", 1},
		{"default", DefaultBatchSize},
		{"page limit", MaxSignaturePageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.BatchSize = tt.size
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate() error = %v for batchSize=%d, want nil", err, tt.size)
			}
		})
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"zero", 0},
		{"negative", -1},
		{"too high", 65536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.HTTPPort = tt.port
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate() expected error for port=%d, got nil", tt.port)
			}
		})
	}
}

func TestValidate_NegativeDelay(t *testing.T) {
	cfg := validConfig()
	cfg.DelayMs = -100
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for negative delay, got nil")
	}
}

func TestValidate_NegativeStopAfter(t *testing.T) {
	cfg := validConfig()
	cfg.StopAfter = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for negative stop-after, got nil")
	}
}
