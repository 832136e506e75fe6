package config

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "minimal valid configuration",
			env: map[string]string{
				"JWT_SECRET":   "test-secret",
				"DATABASE_URL": "postgres://localhost/quizroom",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.ServerPort != "8080" {
					t.Errorf("Expected default port 8080, got %s", cfg.ServerPort)
				}
				if cfg.AccessTokenTTL != 10*time.Minute {
					t.Errorf("Expected default access TTL 10m, got %s", cfg.AccessTokenTTL)
				}
				if cfg.RefreshTokenTTL != 7*24*time.Hour {
					t.Errorf("Expected default refresh TTL 168h, got %s", cfg.RefreshTokenTTL)
				}
			},
		},
		{
			name: "missing signing secret is fatal",
			env: map[string]string{
				"DATABASE_URL": "postgres://localhost/quizroom",
			},
			wantErr: true,
		},
		{
			name: "missing database URL is fatal",
			env: map[string]string{
				"JWT_SECRET": "test-secret",
			},
			wantErr: true,
		},
		{
			name: "TTL overrides are parsed as durations",
			env: map[string]string{
				"JWT_SECRET":        "test-secret",
				"DATABASE_URL":      "postgres://localhost/quizroom",
				"ACCESS_TOKEN_TTL":  "5m",
				"REFRESH_TOKEN_TTL": "48h",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.AccessTokenTTL != 5*time.Minute {
					t.Errorf("Expected access TTL 5m, got %s", cfg.AccessTokenTTL)
				}
				if cfg.RefreshTokenTTL != 48*time.Hour {
					t.Errorf("Expected refresh TTL 48h, got %s", cfg.RefreshTokenTTL)
				}
			},
		},
		{
			name: "invalid TTL override falls back to default",
			env: map[string]string{
				"JWT_SECRET":       "test-secret",
				"DATABASE_URL":     "postgres://localhost/quizroom",
				"ACCESS_TOKEN_TTL": "not-a-duration",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.AccessTokenTTL != 10*time.Minute {
					t.Errorf("Expected fallback access TTL 10m, got %s", cfg.AccessTokenTTL)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			// Clear required keys the case does not set
			for _, k := range []string{"JWT_SECRET", "DATABASE_URL", "ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL"} {
				if _, ok := tt.env[k]; !ok {
					t.Setenv(k, "")
				}
			}

			cfg, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() returned error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}
