package document

import "strings"

const (
	DefaultMaxFileSizeMB = 50
	DefaultEncoding      = "utf-8"
)

// ParserConfig is shared by every format parser.
type ParserConfig struct {
	// ExtractTables gates table extraction in formats where it is expensive.
	ExtractTables bool `yaml:"extractTables" json:"extractTables"`
	// ExtractImages and OCREnabled are accepted but not acted on.
	ExtractImages bool `yaml:"extractImages" json:"extractImages"`
	OCREnabled    bool `yaml:"ocrEnabled" json:"ocrEnabled"`
	// MaxFileSizeMB is the validation ceiling.
	MaxFileSizeMB int `yaml:"maxFileSizeMB" json:"maxFileSizeMB"`
	// Encoding is the first decode attempt for text-oriented formats.
	Encoding string `yaml:"encoding" json:"encoding"`
}

// DefaultParserConfig returns the documented defaults.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		ExtractTables: true,
		MaxFileSizeMB: DefaultMaxFileSizeMB,
		Encoding:      DefaultEncoding,
	}
}

// Normalize fills unset size and encoding fields with defaults.
func (c ParserConfig) Normalize() ParserConfig {
	if c.MaxFileSizeMB <= 0 {
		c.MaxFileSizeMB = DefaultMaxFileSizeMB
	}
	if strings.TrimSpace(c.Encoding) == "" {
		c.Encoding = DefaultEncoding
	}
	return c
}
