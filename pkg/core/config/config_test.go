package config_test

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/ericbfriday/clippyjs-sub002/pkg/cache"
	"github.com/ericbfriday/clippyjs-sub002/pkg/core/config"
	"github.com/ericbfriday/clippyjs-sub002/pkg/core/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Engine.TokenBudget != 4000 {
		t.Errorf("Engine.TokenBudget = %d, want 4000", cfg.Engine.TokenBudget)
	}
	if cfg.Engine.GatherTimeout != 0 {
		t.Errorf("Engine.GatherTimeout = %v, want 0 (no manager-imposed timeout)", cfg.Engine.GatherTimeout)
	}
	if cfg.Engine.RecencyTau != 60*time.Second {
		t.Errorf("Engine.RecencyTau = %v, want 60s", cfg.Engine.RecencyTau)
	}
	if cfg.Cache.EvictionPolicy != cache.PolicyLRU {
		t.Errorf("Cache.EvictionPolicy = %q, want lru", cfg.Cache.EvictionPolicy)
	}
	if cfg.Cache.MaxSizeBytes != 1<<20 {
		t.Errorf("Cache.MaxSizeBytes = %d, want 1 MiB", cfg.Cache.MaxSizeBytes)
	}
	if cfg.Chat.Model != "gpt-4o-mini" {
		t.Errorf("Chat.Model = %q, want gpt-4o-mini", cfg.Chat.Model)
	}
	if cfg.Chat.MaxRetries != 3 {
		t.Errorf("Chat.MaxRetries = %d, want 3", cfg.Chat.MaxRetries)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ASSISTANT_ENGINE_TOKEN_BUDGET", "8000")
	t.Setenv("ASSISTANT_ENGINE_GATHER_TIMEOUT", "10s")
	t.Setenv("ASSISTANT_CACHE_MAX_SIZE_BYTES", "2097152")
	t.Setenv("ASSISTANT_CACHE_EVICTION_POLICY", "lfu")
	t.Setenv("ASSISTANT_CHAT_API_KEY", "sk-test")
	t.Setenv("ASSISTANT_CHAT_MODEL", "gpt-4o")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Engine.TokenBudget != 8000 {
		t.Errorf("Engine.TokenBudget = %d, want 8000", cfg.Engine.TokenBudget)
	}
	if cfg.Engine.GatherTimeout != 10*time.Second {
		t.Errorf("Engine.GatherTimeout = %v, want 10s", cfg.Engine.GatherTimeout)
	}
	if cfg.Cache.MaxSizeBytes != 2097152 {
		t.Errorf("Cache.MaxSizeBytes = %d, want 2097152", cfg.Cache.MaxSizeBytes)
	}
	if cfg.Cache.EvictionPolicy != cache.PolicyLFU {
		t.Errorf("Cache.EvictionPolicy = %q, want lfu", cfg.Cache.EvictionPolicy)
	}
	if cfg.Chat.APIKey != "sk-test" {
		t.Errorf("Chat.APIKey = %q, want sk-test", cfg.Chat.APIKey)
	}
	if cfg.Chat.Model != "gpt-4o" {
		t.Errorf("Chat.Model = %q, want gpt-4o", cfg.Chat.Model)
	}
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"negative token budget", "ASSISTANT_ENGINE_TOKEN_BUDGET", "-1"},
		{"min relevance above one", "ASSISTANT_ENGINE_MIN_RELEVANCE", "1.5"},
		{"unknown eviction policy", "ASSISTANT_CACHE_EVICTION_POLICY", "random"},
		{"negative max retries", "ASSISTANT_CHAT_MAX_RETRIES", "-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			// 非法配置必须在加载时立即失败，而不是被悄悄修正
			if _, err := config.Load(); err == nil {
				t.Errorf("Load() with %s=%s error = nil, want validation failure", tt.key, tt.value)
			}
		})
	}
}

func TestEngineConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.EngineConfig)
		wantErr error
	}{
		{"zero token budget", func(c *config.EngineConfig) { c.TokenBudget = 0 }, config.ErrInvalidTokenBudget},
		{"negative min relevance", func(c *config.EngineConfig) { c.MinRelevance = -0.5 }, config.ErrInvalidMinRelevance},
		{"min relevance above one", func(c *config.EngineConfig) { c.MinRelevance = 2 }, config.ErrInvalidMinRelevance},
		{"negative gather timeout", func(c *config.EngineConfig) { c.GatherTimeout = -time.Second }, config.ErrInvalidTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultEngineConfig()
			tt.mutate(&cfg)

			if err := cfg.Validate(); !stderrors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChatConfigValidate(t *testing.T) {
	cfg := config.DefaultChatConfig()
	cfg.Model = ""
	if err := cfg.Validate(); !stderrors.Is(err, config.ErrModelRequired) {
		t.Errorf("Validate() error = %v, want ErrModelRequired", err)
	}

	cfg = config.DefaultChatConfig()
	cfg.MaxRetries = -1
	if err := cfg.Validate(); !stderrors.Is(err, config.ErrInvalidMaxRetries) {
		t.Errorf("Validate() error = %v, want ErrInvalidMaxRetries", err)
	}

	// Validate 只校验，不修改越界值
	cfg = config.DefaultChatConfig()
	cfg.Timeout = time.Hour
	cfg.MaxRetries = 50
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Timeout != time.Hour {
		t.Errorf("Timeout = %v, want unchanged by Validate", cfg.Timeout)
	}
	if cfg.MaxRetries != 50 {
		t.Errorf("MaxRetries = %d, want unchanged by Validate", cfg.MaxRetries)
	}
}

func TestChatConfigWithDefaults(t *testing.T) {
	cfg := config.ChatConfig{APIKey: "sk-test"}.WithDefaults()

	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want gpt-4o-mini", cfg.Model)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.APIKey != "sk-test" {
		t.Errorf("APIKey = %q, want preserved", cfg.APIKey)
	}

	// 超出上限的值在 WithDefaults 中收敛
	clamped := config.ChatConfig{
		Model:      "gpt-4o",
		Timeout:    time.Hour,
		MaxRetries: 50,
	}.WithDefaults()
	if clamped.Timeout != 5*time.Minute {
		t.Errorf("Timeout = %v, want clamped to 5m", clamped.Timeout)
	}
	if clamped.MaxRetries != 10 {
		t.Errorf("MaxRetries = %d, want clamped to 10", clamped.MaxRetries)
	}
}

func TestCacheConfigValidate(t *testing.T) {
	cfg := cache.DefaultConfig()
	cfg.EvictionPolicy = "arc"

	if err := cfg.Validate(); !stderrors.Is(err, errors.ErrInvalidConfig) {
		t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoaderAccessors(t *testing.T) {
	t.Setenv("ASSISTANT_ENGINE_TOKEN_BUDGET", "2000")
	t.Setenv("ASSISTANT_ENGINE_STATS_ENABLED", "true")
	t.Setenv("ASSISTANT_CHAT_TIMEOUT", "45s")

	loader := config.NewLoader()
	if err := loader.LoadEnv(config.EnvPrefix); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}

	if got := loader.GetInt("engine.token_budget"); got != 2000 {
		t.Errorf("GetInt(engine.token_budget) = %d, want 2000", got)
	}
	if got := loader.GetBool("engine.stats_enabled"); !got {
		t.Error("GetBool(engine.stats_enabled) = false, want true")
	}
	if got := loader.GetDuration("chat.timeout"); got != 45*time.Second {
		t.Errorf("GetDuration(chat.timeout) = %v, want 45s", got)
	}
	if got := loader.GetString("engine.token_budget"); got != "2000" {
		t.Errorf("GetString(engine.token_budget) = %q, want 2000", got)
	}
}
