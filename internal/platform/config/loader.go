package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load builds the configuration in three layers: built-in defaults, an
// optional YAML file, then environment variables. A .env file in the
// working directory is read into the environment first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if cfg.LLM.MaxMaxTokens > 0 && cfg.LLM.MaxTokens > cfg.LLM.MaxMaxTokens {
		cfg.LLM.MaxTokens = cfg.LLM.MaxMaxTokens
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envString("SERVER_IP", &cfg.Server.IP)
	envInt("SERVER_PORT", &cfg.Server.Port)
	envInt("SERVER_WS_PORT", &cfg.Server.WSPort)
	envString("LOG_LEVEL", &cfg.Log.Level)
	envString("LOG_DIR", &cfg.Log.Dir)

	envString("API_KEY", &cfg.Security.APIKey)
	envList("ALLOWED_ORIGINS", &cfg.Security.AllowedOrigins)
	envInt("MAX_REQUESTS_PER_MINUTE", &cfg.Security.MaxRequestsPerMinute)

	envString("VAD_MODEL_URL", &cfg.VAD.ModelURL)
	envFloat("VAD_THRESHOLD", &cfg.VAD.Threshold)
	envInt("VAD_MIN_SILENCE_DURATION_MS", &cfg.VAD.MinSilenceDurationMS)
	envInt("VAD_SPEECH_PAD_MS", &cfg.VAD.SpeechPadMS)
	envInt("VAD_GENTLE_PROMPT_SILENCE_MS", &cfg.VAD.GentlePromptSilenceMS)

	envString("ASR_API_URL", &cfg.ASR.APIURL)
	envSeconds("ASR_TIMEOUT_S", &cfg.ASR.Timeout)

	envString("LLM_LOCAL_API_URL", &cfg.LLM.APIURL)
	envString("LLM_API_KEY", &cfg.LLM.APIKey)
	envString("LLM_MODEL_NAME", &cfg.LLM.ModelName)
	envFloat("LLM_TEMPERATURE", &cfg.LLM.Temperature)
	envInt("LLM_MAX_TOKENS", &cfg.LLM.MaxTokens)
	envInt("LLM_MAX_MAX_TOKENS", &cfg.LLM.MaxMaxTokens)
	envSeconds("LLM_TIMEOUT_S", &cfg.LLM.Timeout)

	envString("TTS_API_URL", &cfg.TTS.APIURL)
	envBool("TTS_USE_CACHE", &cfg.TTS.UseCache)
	envString("TTS_CACHE_PREFIX", &cfg.TTS.CachePrefix)
	envSeconds("TTS_CACHE_EXPIRATION_S", &cfg.TTS.CacheExpiration)
	envBool("TTS_PRELOAD_COMMON_PHRASES", &cfg.TTS.PreloadPhrases)
	envString("TTS_VOICE", &cfg.TTS.Voice)

	envString("REDIS_ADDR", &cfg.Redis.Addr)
	envString("REDIS_PASSWORD", &cfg.Redis.Password)
	envInt("REDIS_DB", &cfg.Redis.DB)

	envSeconds("SESSION_TIMEOUT_S", &cfg.Session.IdleTimeout)

	envString("AUDIO_STORAGE_PATH", &cfg.Storage.AudioPath)
	envString("FEEDBACK_STORAGE_PATH", &cfg.Storage.FeedbackPath)
	envString("SCENARIO_DIR", &cfg.Storage.ScenarioDir)
	envString("AGENT_DIR", &cfg.Storage.AgentDir)
	envString("DATABASE_DSN", &cfg.Storage.DatabaseDSN)
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Server.WSPort <= 0 || cfg.Server.WSPort > 65535 {
		return fmt.Errorf("invalid websocket port %d", cfg.Server.WSPort)
	}
	if cfg.VAD.Threshold <= 0 || cfg.VAD.Threshold >= 1 {
		return fmt.Errorf("vad threshold %v outside (0,1)", cfg.VAD.Threshold)
	}
	if cfg.VAD.MinSilenceDurationMS <= 0 {
		return fmt.Errorf("vad min silence must be positive")
	}
	if cfg.LLM.Timeout <= 0 {
		return fmt.Errorf("llm timeout must be positive")
	}
	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}
}

func envSeconds(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Second
		}
	}
}

func envList(key string, dst *[]string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}
