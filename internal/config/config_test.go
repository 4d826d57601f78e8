package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("CARD_CACHE_TTL_SECONDS", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg := Load()
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.CardCacheTTL != 5*time.Minute {
		t.Errorf("CardCacheTTL = %v", cfg.CardCacheTTL)
	}
	if cfg.AllowedOrigins != nil {
		t.Errorf("AllowedOrigins = %v, want nil", cfg.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("JWT_EXPIRY_HOURS", "2")
	t.Setenv("CARD_CACHE_TTL_SECONDS", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", " https://a.test , ,https://b.test")

	cfg := Load()
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.JWTExpiry != 2*time.Hour {
		t.Errorf("JWTExpiry = %v", cfg.JWTExpiry)
	}
	if cfg.CardCacheTTL != 5*time.Minute {
		t.Errorf("invalid TTL should fall back, got %v", cfg.CardCacheTTL)
	}
	want := []string{"https://a.test", "https://b.test"}
	if !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Errorf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
	}
}

func TestCacheKeysCarryGeneration(t *testing.T) {
	if got := CacheKey.ClassSummaryKey(7, 3); got != "class:7:summary:3" {
		t.Errorf("ClassSummaryKey = %q", got)
	}
	if CacheKey.ClassSummaryKey(7, 3) == CacheKey.ClassSummaryKey(7, 4) {
		t.Error("generations must map to distinct keys")
	}
	if got := CacheKey.ClassSummaryListKey(2); got != "class:summaries:2" {
		t.Errorf("ClassSummaryListKey = %q", got)
	}
	if CacheKey.ClassListGenerationKey() == CacheKey.ClassSummaryListKey(0) {
		t.Error("list generation counter collides with a list entry")
	}
	if got := CacheKey.ClassGenerationKey(7); got != "class:7:gen" {
		t.Errorf("ClassGenerationKey = %q", got)
	}
}
