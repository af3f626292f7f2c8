// Package config handles narrator configuration.
//
// Values resolve in order: built-in defaults, then the optional YAML file named by
// CONFIG_FILE, then environment variables (a .env file in the working directory is
// loaded first and never overrides variables already set).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "github.com/GriffinCanCode/screen-narrator/internal/errors"
)

// Inference providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Journal backends.
const (
	JournalFile   = "file"
	JournalSQLite = "sqlite"
)

type Config struct {
	HTTPAddr   string `yaml:"http_addr"`
	OutputDir  string `yaml:"output_dir"`
	RegionFile string `yaml:"region_file"`

	CaptureInterval  time.Duration `yaml:"capture_interval"`
	HashThreshold    int           `yaml:"hash_threshold"`
	ContextEntries   int           `yaml:"extraction_context_entries"`
	DedupSimilarity  float64       `yaml:"dedup_similarity"`
	SummaryMinChars  int           `yaml:"summary_min_chars"`
	CaptureOnStartup bool          `yaml:"capture_on_startup"`

	Provider      string `yaml:"inference_provider"`
	OpenAIKey     string `yaml:"-"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	VisionModel   string `yaml:"vision_model"`
	SummaryModel  string `yaml:"summary_model"`
	GeminiKey     string `yaml:"-"`
	GeminiModel   string `yaml:"gemini_model"`

	ElevenLabsKey     string `yaml:"-"`
	ElevenLabsBaseURL string `yaml:"elevenlabs_base_url"`
	VoiceID           string `yaml:"voice_id"`
	TTSModel          string `yaml:"tts_model"`
	TTSSampleRate     int    `yaml:"tts_sample_rate"`
	SpeechEnabled     bool   `yaml:"speech_enabled"`
	DuckingEnabled    bool   `yaml:"ducking_enabled"`

	OCRTimeout     time.Duration `yaml:"ocr_timeout"`
	SummaryTimeout time.Duration `yaml:"summary_timeout"`
	TTSTimeout     time.Duration `yaml:"tts_timeout"`

	JournalBackend string `yaml:"journal_backend"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		HTTPAddr:          "127.0.0.1:8000",
		OutputDir:         "output",
		RegionFile:        filepath.Join("output", "region.json"),
		CaptureInterval:   time.Second,
		HashThreshold:     2,
		ContextEntries:    10,
		DedupSimilarity:   0.8,
		SummaryMinChars:   50,
		CaptureOnStartup:  true,
		Provider:          ProviderOpenAI,
		OpenAIBaseURL:     "https://api.openai.com/v1",
		VisionModel:       "gpt-4o-mini",
		SummaryModel:      "gpt-4o",
		GeminiModel:       "gemini-2.5-flash",
		ElevenLabsBaseURL: "https://api.elevenlabs.io/v1",
		VoiceID:           "21m00Tcm4TlvDq8ikWAM",
		TTSModel:          "eleven_multilingual_v2",
		TTSSampleRate:     22050,
		SpeechEnabled:     true,
		DuckingEnabled:    true,
		OCRTimeout:        30 * time.Second,
		SummaryTimeout:    30 * time.Second,
		TTSTimeout:        60 * time.Second,
		JournalBackend:    JournalFile,
		LogLevel:          "debug",
		LogFormat:         "tint",
		LogFile:           filepath.Join("output", "debug.log"),
	}
}

// Load resolves configuration from defaults, file, and environment, then validates.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "load .env")
	}

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.CodeConfigMissing, "read config file %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "parse config file %s", path)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.OutputDir = getEnv("OUTPUT_DIR", c.OutputDir)
	c.RegionFile = getEnv("REGION_FILE", c.RegionFile)

	c.CaptureInterval = getEnvDuration("CAPTURE_INTERVAL", c.CaptureInterval)
	c.HashThreshold = getEnvInt("HASH_THRESHOLD", c.HashThreshold)
	c.ContextEntries = getEnvInt("EXTRACTION_CONTEXT_ENTRIES", c.ContextEntries)
	c.DedupSimilarity = getEnvFloat("DEDUP_SIMILARITY", c.DedupSimilarity)
	c.SummaryMinChars = getEnvInt("SUMMARY_MIN_CHARS", c.SummaryMinChars)
	c.CaptureOnStartup = getEnvBool("CAPTURE_ON_STARTUP", c.CaptureOnStartup)

	c.Provider = strings.ToLower(getEnv("INFERENCE_PROVIDER", c.Provider))
	c.OpenAIKey = getEnv("OPENAI_API_KEY", c.OpenAIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.VisionModel = getEnv("VISION_MODEL", c.VisionModel)
	c.SummaryModel = getEnv("SUMMARY_MODEL", c.SummaryModel)
	c.GeminiKey = getEnv("GEMINI_API_KEY", c.GeminiKey)
	c.GeminiModel = getEnv("GEMINI_MODEL", c.GeminiModel)

	c.ElevenLabsKey = getEnv("ELEVENLABS_API_KEY", c.ElevenLabsKey)
	c.ElevenLabsBaseURL = getEnv("ELEVENLABS_BASE_URL", c.ElevenLabsBaseURL)
	c.VoiceID = getEnv("ELEVENLABS_VOICE_ID", c.VoiceID)
	c.TTSModel = getEnv("TTS_MODEL", c.TTSModel)
	c.TTSSampleRate = getEnvInt("TTS_SAMPLE_RATE", c.TTSSampleRate)
	c.SpeechEnabled = getEnvBool("SPEECH_ENABLED", c.SpeechEnabled)
	c.DuckingEnabled = getEnvBool("DUCKING_ENABLED", c.DuckingEnabled)

	c.OCRTimeout = getEnvDuration("OCR_TIMEOUT", c.OCRTimeout)
	c.SummaryTimeout = getEnvDuration("SUMMARY_TIMEOUT", c.SummaryTimeout)
	c.TTSTimeout = getEnvDuration("TTS_TIMEOUT", c.TTSTimeout)

	c.JournalBackend = strings.ToLower(getEnv("JOURNAL_BACKEND", c.JournalBackend))

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	if v, ok := os.LookupEnv("LOG_FILE"); ok {
		c.LogFile = v // empty disables the file
	}
}

// Validate resets out-of-range values to defaults and rejects unusable settings.
func (c *Config) Validate() error {
	def := Defaults()
	if c.CaptureInterval <= 0 {
		c.CaptureInterval = def.CaptureInterval
	}
	if c.HashThreshold < 0 {
		c.HashThreshold = def.HashThreshold
	}
	if c.ContextEntries <= 0 {
		c.ContextEntries = def.ContextEntries
	}
	if c.DedupSimilarity < 0 || c.DedupSimilarity > 1 {
		c.DedupSimilarity = def.DedupSimilarity
	}
	if c.SummaryMinChars < 0 {
		c.SummaryMinChars = def.SummaryMinChars
	}
	if c.TTSSampleRate <= 0 {
		c.TTSSampleRate = def.TTSSampleRate
	}
	if c.OCRTimeout <= 0 {
		c.OCRTimeout = def.OCRTimeout
	}
	if c.SummaryTimeout <= 0 {
		c.SummaryTimeout = def.SummaryTimeout
	}
	if c.TTSTimeout <= 0 {
		c.TTSTimeout = def.TTSTimeout
	}

	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			return apperrors.New(apperrors.CodeConfigMissing, "OPENAI_API_KEY not set")
		}
	case ProviderGemini:
		if c.GeminiKey == "" {
			return apperrors.New(apperrors.CodeConfigMissing, "GEMINI_API_KEY not set")
		}
	default:
		return apperrors.Newf(apperrors.CodeConfigInvalid, "unknown inference provider %q", c.Provider)
	}

	if c.SpeechEnabled && c.ElevenLabsKey == "" {
		return apperrors.New(apperrors.CodeConfigMissing, "ELEVENLABS_API_KEY not set (or set SPEECH_ENABLED=false)")
	}

	switch c.JournalBackend {
	case JournalFile, JournalSQLite:
	default:
		return apperrors.Newf(apperrors.CodeConfigInvalid, "unknown journal backend %q", c.JournalBackend)
	}
	return nil
}

// String renders the config with credentials masked.
func (c *Config) String() string {
	return fmt.Sprintf("provider=%s vision=%s summary=%s voice=%s interval=%s threshold=%d journal=%s openai_key=%s gemini_key=%s elevenlabs_key=%s",
		c.Provider, c.VisionModel, c.SummaryModel, c.VoiceID, c.CaptureInterval, c.HashThreshold, c.JournalBackend,
		mask(c.OpenAIKey), mask(c.GeminiKey), mask(c.ElevenLabsKey))
}

func mask(s string) string {
	if s == "" {
		return "unset"
	}
	return "set"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

// getEnvDuration accepts Go durations ("1500ms") or bare seconds ("1.5").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	return def
}
