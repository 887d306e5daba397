package config

import "time"

// Config is the full server configuration. Values come from the optional
// YAML file, then environment variables override individual fields.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Security SecurityConfig `yaml:"security"`
	VAD      VADConfig      `yaml:"vad"`
	ASR      ASRConfig      `yaml:"asr"`
	LLM      LLMConfig      `yaml:"llm"`
	TTS      TTSConfig      `yaml:"tts"`
	Redis    RedisConfig    `yaml:"redis"`
	Session  SessionConfig  `yaml:"session"`
	Storage  StorageConfig  `yaml:"storage"`
	Pool     PoolConfig     `yaml:"pool"`
}

type ServerConfig struct {
	IP     string `yaml:"ip"`
	Port   int    `yaml:"port"`
	WSPort int    `yaml:"ws_port"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type SecurityConfig struct {
	APIKey               string   `yaml:"api_key"`
	AllowedOrigins       []string `yaml:"allowed_origins"`
	MaxRequestsPerMinute int      `yaml:"max_requests_per_minute"`
	AuthFailWindow       time.Duration `yaml:"auth_fail_window"`
	AuthFailLimit        int           `yaml:"auth_fail_limit"`
	AuthBlockDuration    time.Duration `yaml:"auth_block_duration"`
	TokenTTL             time.Duration `yaml:"token_ttl"`
}

type VADConfig struct {
	ModelURL             string  `yaml:"model_url"`
	Threshold            float64 `yaml:"threshold"`
	MinSilenceDurationMS int     `yaml:"min_silence_duration_ms"`
	SpeechPadMS          int     `yaml:"speech_pad_ms"`
	GentlePromptSilenceMS int    `yaml:"gentle_prompt_silence_ms"`
}

type ASRConfig struct {
	APIURL  string        `yaml:"api_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type LLMConfig struct {
	APIURL      string  `yaml:"api_url"`
	APIKey      string  `yaml:"api_key"`
	ModelName   string  `yaml:"model_name"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	// MaxMaxTokens caps MaxTokens regardless of where it was set;
	// some hosted backends reject requests above their own ceiling.
	MaxMaxTokens int           `yaml:"max_max_tokens"`
	Timeout      time.Duration `yaml:"timeout"`
}

type TTSConfig struct {
	APIURL          string        `yaml:"api_url"`
	UseCache        bool          `yaml:"use_cache"`
	CachePrefix     string        `yaml:"cache_prefix"`
	CacheExpiration time.Duration `yaml:"cache_expiration"`
	PreloadPhrases  bool          `yaml:"preload_phrases"`
	Voice           string        `yaml:"voice"`
	SampleRate      int           `yaml:"sample_rate"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SessionConfig struct {
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `yaml:"heartbeat_timeout"`
}

type StorageConfig struct {
	AudioPath    string `yaml:"audio_path"`
	FeedbackPath string `yaml:"feedback_path"`
	ScenarioDir  string `yaml:"scenario_dir"`
	AgentDir     string `yaml:"agent_dir"`
	DatabaseDSN  string `yaml:"database_dsn"`
}

type PoolConfig struct {
	MaxPerService int           `yaml:"max_per_service"`
	AcquireWait   time.Duration `yaml:"acquire_wait"`
}

// Default returns the configuration used when no file or env overrides exist.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			IP:     "0.0.0.0",
			Port:   8080,
			WSPort: 8000,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "logs",
			File:  "server.log",
		},
		Security: SecurityConfig{
			AllowedOrigins:       []string{"*"},
			MaxRequestsPerMinute: 60,
			AuthFailWindow:       time.Minute,
			AuthFailLimit:        3,
			AuthBlockDuration:    5 * time.Minute,
			TokenTTL:             time.Hour,
		},
		VAD: VADConfig{
			Threshold:             0.45,
			MinSilenceDurationMS:  2000,
			SpeechPadMS:           400,
			GentlePromptSilenceMS: 1200,
		},
		ASR: ASRConfig{
			APIURL:  "http://localhost:8001/asr",
			Timeout: 15 * time.Second,
		},
		LLM: LLMConfig{
			APIURL:       "http://localhost:8002/v1",
			ModelName:    "mistral-nemo-instruct-2407",
			Temperature:  0.7,
			MaxTokens:    512,
			MaxMaxTokens: 2048,
			Timeout:      30 * time.Second,
		},
		TTS: TTSConfig{
			APIURL:          "http://localhost:8003/tts",
			UseCache:        true,
			CachePrefix:     "tts_cache:",
			CacheExpiration: 24 * time.Hour,
			PreloadPhrases:  true,
			Voice:           "fr_coach_1",
			SampleRate:      16000,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Session: SessionConfig{
			IdleTimeout:       10 * time.Minute,
			HeartbeatInterval: 30 * time.Second,
			HeartbeatTimeout:  60 * time.Second,
		},
		Storage: StorageConfig{
			AudioPath:    "data/audio",
			FeedbackPath: "data/feedback",
			ScenarioDir:  "data/scenarios",
			AgentDir:     "data/agents",
			DatabaseDSN:  "data/eloquence.db",
		},
		Pool: PoolConfig{
			MaxPerService: 8,
			AcquireWait:   5 * time.Second,
		},
	}
}
