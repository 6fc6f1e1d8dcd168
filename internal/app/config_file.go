package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the YAML or JSON configuration file schema.
type FileConfig struct {
	Parser struct {
		// ExtractTables is a pointer so a file can turn the default off.
		ExtractTables *bool         `yaml:"extractTables" json:"extractTables"`
		ExtractImages bool          `yaml:"extractImages" json:"extractImages"`
		MaxFileSizeMB int           `yaml:"maxFileSizeMB" json:"maxFileSizeMB"`
		Encoding      string        `yaml:"encoding" json:"encoding"`
		Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	} `yaml:"parser" json:"parser"`

	Parsers []string `yaml:"parsers" json:"parsers"`

	LLM struct {
		BaseURL string `yaml:"base" json:"base"`
		Model   string `yaml:"model" json:"model"`
		APIKey  string `yaml:"key" json:"key"`

		// ContextTokens overrides the context size guessed from the model.
		ContextTokens int `yaml:"contextTokens" json:"contextTokens"`
	} `yaml:"llm" json:"llm"`

	Chat struct {
		SystemPrompt string   `yaml:"systemPrompt" json:"systemPrompt"`
		Temperature  *float32 `yaml:"temperature" json:"temperature"`
	} `yaml:"chat" json:"chat"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
		MaxBytes    int64         `yaml:"maxBytes" json:"maxBytes"`
		MaxCount    int           `yaml:"maxCount" json:"maxCount"`
	} `yaml:"cache" json:"cache"`

	Verbose bool `yaml:"verbose" json:"verbose"`
	JSON    bool `yaml:"json" json:"json"`
}

// LoadConfigFile reads YAML or JSON into FileConfig. Files without a known
// extension are tried as YAML, then JSON.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays every value the file sets onto cfg. It is meant
// to run on DefaultConfig before env and flag layers.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if fc.Parser.ExtractTables != nil {
		cfg.Parser.ExtractTables = *fc.Parser.ExtractTables
	}
	if fc.Parser.ExtractImages {
		cfg.Parser.ExtractImages = true
	}
	if fc.Parser.MaxFileSizeMB > 0 {
		cfg.Parser.MaxFileSizeMB = fc.Parser.MaxFileSizeMB
	}
	if strings.TrimSpace(fc.Parser.Encoding) != "" {
		cfg.Parser.Encoding = fc.Parser.Encoding
	}
	if fc.Parser.Timeout > 0 {
		cfg.ParseTimeout = fc.Parser.Timeout
	}
	if len(fc.Parsers) > 0 {
		cfg.Parsers = append([]string(nil), fc.Parsers...)
	}

	if fc.LLM.BaseURL != "" {
		cfg.LLMBaseURL = fc.LLM.BaseURL
	}
	if fc.LLM.Model != "" {
		cfg.LLMModel = fc.LLM.Model
	}
	if fc.LLM.APIKey != "" {
		cfg.LLMAPIKey = fc.LLM.APIKey
	}
	if fc.LLM.ContextTokens > 0 {
		cfg.LLMContextTokens = fc.LLM.ContextTokens
	}
	if fc.Chat.SystemPrompt != "" {
		cfg.SystemPrompt = fc.Chat.SystemPrompt
	}
	if fc.Chat.Temperature != nil {
		v := *fc.Chat.Temperature
		cfg.Temperature = &v
	}

	if fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	if fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}
	if fc.Cache.MaxBytes > 0 {
		cfg.CacheMaxBytes = fc.Cache.MaxBytes
	}
	if fc.Cache.MaxCount > 0 {
		cfg.CacheMaxCount = fc.Cache.MaxCount
	}
	if fc.Verbose {
		cfg.Verbose = true
	}
	if fc.JSON {
		cfg.JSON = true
	}
}

// ValidateConfig checks settings every command needs. requireLLM adds the
// model settings the chat command cannot run without.
func ValidateConfig(cfg Config, requireLLM bool) error {
	if cfg.Parser.MaxFileSizeMB < 0 {
		return errors.New("config: parser.maxFileSizeMB must not be negative")
	}
	if cfg.ParseTimeout < 0 {
		return errors.New("config: parser.timeout must not be negative")
	}
	if cfg.LLMContextTokens < 0 {
		return errors.New("config: llm.contextTokens must not be negative")
	}
	if cfg.CacheMaxBytes < 0 || cfg.CacheMaxCount < 0 {
		return errors.New("config: cache limits must not be negative")
	}
	if t := cfg.Temperature; t != nil && (*t < 0 || *t > 2) {
		return errors.New("config: chat.temperature must be between 0 and 2")
	}
	if _, err := cfg.BuildParsers(); err != nil {
		return err
	}
	if requireLLM && strings.TrimSpace(cfg.LLMModel) == "" {
		return errors.New("config: llm.model is required (or set LLM_MODEL)")
	}
	return nil
}
