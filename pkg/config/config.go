package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/augmentac/ff2api-postback/pkg/common"
	"gopkg.in/yaml.v3"
)

// Config represents the main configuration structure
type Config struct {
	// Load-management API configuration
	API APIConfig `json:"api" yaml:"api"`

	// Workflow configuration
	Workflow WorkflowConfig `json:"workflow" yaml:"workflow"`

	// Field mapping applied to input rows before submission
	Mapping common.MappingConfig `json:"mapping" yaml:"mapping"`

	// Enrichment sources applied to each row
	Enrichment EnrichmentConfig `json:"enrichment" yaml:"enrichment"`

	// Postback destinations for the finished batch
	Postback PostbackConfig `json:"postback" yaml:"postback"`
}

// APIConfig represents the load-management API configuration
type APIConfig struct {
	BaseURL        string `json:"baseUrl" yaml:"baseUrl"`               // e.g. https://api.prod.goaugment.com
	EventsURL      string `json:"eventsUrl" yaml:"eventsUrl"`           // Agent-events service base URL
	BrokerageKey   string `json:"brokerageKey" yaml:"brokerageKey"`     // Multi-tenant partition key
	APIKey         string `json:"apiKey" yaml:"apiKey"`                 // Refresh token for POST /token/refresh
	BearerToken    string `json:"bearerToken" yaml:"bearerToken"`       // Pre-issued bearer token (alternative to apiKey)
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeoutSeconds"` // Per-call timeout
	RetryCount     int    `json:"retryCount" yaml:"retryCount"`         // Lookup retries in the load ID mapper
	RetryDelayMs   int    `json:"retryDelayMs" yaml:"retryDelayMs"`     // Fixed delay between lookup retries
}

// WorkflowConfig represents workflow-level settings
type WorkflowConfig struct {
	Type        string `json:"type" yaml:"type"`               // "endtoend" or "postback"
	EventsLimit int    `json:"eventsLimit" yaml:"eventsLimit"` // Max agent events fetched per load
}

// EnrichmentConfig holds the ordered list of enrichment sources
type EnrichmentConfig struct {
	Sources []SourceConfig `json:"sources" yaml:"sources"`
}

// SourceConfig configures one enrichment source. Type selects the
// implementation; the remaining keys are type-specific.
type SourceConfig struct {
	Type string `json:"type" yaml:"type"`

	// mock_tracking
	GenerateEvents *bool `json:"generateEvents,omitempty" yaml:"generateEvents,omitempty"`
	MaxEvents      int   `json:"maxEvents,omitempty" yaml:"maxEvents,omitempty"`

	// tracking_api
	Endpoint       string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	APIKey         string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	BearerToken    string `json:"bearerToken,omitempty" yaml:"bearerToken,omitempty"`
	ProColumn      string `json:"proColumn,omitempty" yaml:"proColumn,omitempty"`
	CarrierColumn  string `json:"carrierColumn,omitempty" yaml:"carrierColumn,omitempty"`
	MaxRetries     int    `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
	RetryDelayMs   int    `json:"retryDelayMs,omitempty" yaml:"retryDelayMs,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty" yaml:"timeoutSeconds,omitempty"`

	// warehouse
	ConnectionString string   `json:"connectionString,omitempty" yaml:"connectionString,omitempty"`
	Database         string   `json:"database,omitempty" yaml:"database,omitempty"`
	Enrichments      []string `json:"enrichments,omitempty" yaml:"enrichments,omitempty"`
	UseLoadIDs       bool     `json:"useLoadIds,omitempty" yaml:"useLoadIds,omitempty"`
	BrokerageKey     string   `json:"brokerageKey,omitempty" yaml:"brokerageKey,omitempty"`

	// eventsearch
	Addresses []string `json:"addresses,omitempty" yaml:"addresses,omitempty"`
	Username  string   `json:"username,omitempty" yaml:"username,omitempty"`
	Password  string   `json:"password,omitempty" yaml:"password,omitempty"`
	Index     string   `json:"index,omitempty" yaml:"index,omitempty"`
}

// PostbackConfig holds the ordered list of postback handlers
type PostbackConfig struct {
	Handlers []HandlerConfig `json:"handlers" yaml:"handlers"`
}

// HandlerConfig configures one postback handler. Type selects the
// implementation; the remaining keys are type-specific.
type HandlerConfig struct {
	Type string `json:"type" yaml:"type"`

	// File handlers (csv, xlsx, json, xml)
	OutputPath  string `json:"outputPath,omitempty" yaml:"outputPath,omitempty"`
	SheetName   string `json:"sheetName,omitempty" yaml:"sheetName,omitempty"`
	AppendMode  bool   `json:"appendMode,omitempty" yaml:"appendMode,omitempty"`
	RootElement string `json:"rootElement,omitempty" yaml:"rootElement,omitempty"`
	RowElement  string `json:"rowElement,omitempty" yaml:"rowElement,omitempty"`

	// webhook
	URL            string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers        map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	BatchSize      int               `json:"batchSize,omitempty" yaml:"batchSize,omitempty"`
	RetryCount     int               `json:"retryCount,omitempty" yaml:"retryCount,omitempty"`
	TimeoutSeconds int               `json:"timeoutSeconds,omitempty" yaml:"timeoutSeconds,omitempty"`

	// email
	SMTPServer string `json:"smtpServer,omitempty" yaml:"smtpServer,omitempty"`
	SMTPPort   int    `json:"smtpPort,omitempty" yaml:"smtpPort,omitempty"`
	SMTPUser   string `json:"smtpUser,omitempty" yaml:"smtpUser,omitempty"`
	SMTPPass   string `json:"smtpPass,omitempty" yaml:"smtpPass,omitempty"`
	Recipient  string `json:"recipient,omitempty" yaml:"recipient,omitempty"`
	Subject    string `json:"subject,omitempty" yaml:"subject,omitempty"`
	SenderName string `json:"senderName,omitempty" yaml:"senderName,omitempty"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	// Set default config path if not provided
	if configPath == "" {
		configPath = "ff2api_config.json"
	}

	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse the config
	var config Config
	switch filepath.Ext(configPath) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	// Validate the config
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	ApplyDefaults(&config)

	return &config, nil
}

// ApplyDefaults fills in default values for unset parameters
func ApplyDefaults(config *Config) {
	if config.API.TimeoutSeconds <= 0 {
		config.API.TimeoutSeconds = 30 // Default to 30s per API call
	}

	if config.API.RetryCount <= 0 {
		config.API.RetryCount = 3 // Default to 3 lookup attempts
	}

	if config.API.RetryDelayMs <= 0 {
		config.API.RetryDelayMs = 1000 // Default to 1s between attempts
	}

	if config.API.EventsURL == "" {
		config.API.EventsURL = config.API.BaseURL
	}

	if config.Workflow.Type == "" {
		config.Workflow.Type = "endtoend"
	}

	if config.Workflow.EventsLimit <= 0 {
		config.Workflow.EventsLimit = 1000 // Default to 1000 agent events per load
	}

	for i := range config.Enrichment.Sources {
		source := &config.Enrichment.Sources[i]

		if source.MaxEvents <= 0 {
			source.MaxEvents = 5
		}
		if source.MaxRetries <= 0 {
			source.MaxRetries = 3
		}
		if source.RetryDelayMs <= 0 {
			source.RetryDelayMs = 1000
		}
		if source.TimeoutSeconds <= 0 {
			source.TimeoutSeconds = 15 // Tracking calls use a shorter timeout
		}
		if source.ProColumn == "" {
			source.ProColumn = "PRO"
		}
		if source.CarrierColumn == "" {
			source.CarrierColumn = "carrier"
		}
		if source.BrokerageKey == "" {
			source.BrokerageKey = config.API.BrokerageKey
		}
	}

	for i := range config.Postback.Handlers {
		handler := &config.Postback.Handlers[i]

		if handler.BatchSize <= 0 {
			handler.BatchSize = 100
		}
		if handler.RetryCount <= 0 {
			handler.RetryCount = 3
		}
		if handler.TimeoutSeconds <= 0 {
			handler.TimeoutSeconds = 30
		}
		if handler.SheetName == "" {
			handler.SheetName = "Enriched_Data"
		}
		if handler.RootElement == "" {
			handler.RootElement = "data"
		}
		if handler.RowElement == "" {
			handler.RowElement = "row"
		}
		if handler.SMTPServer == "" {
			handler.SMTPServer = "smtp.gmail.com"
		}
		if handler.SMTPPort <= 0 {
			handler.SMTPPort = 587
		}
		if handler.Subject == "" {
			handler.Subject = "Freight Data Results"
		}
		if handler.SenderName == "" {
			handler.SenderName = "FF2API System"
		}
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.API.BaseURL == "" {
		return fmt.Errorf("load API base URL is required")
	}

	if config.API.BrokerageKey == "" {
		return fmt.Errorf("brokerage key is required")
	}

	if config.API.APIKey == "" && config.API.BearerToken == "" {
		return fmt.Errorf("either an API key or a bearer token is required")
	}

	if config.Workflow.Type != "" && config.Workflow.Type != "endtoend" && config.Workflow.Type != "postback" {
		return fmt.Errorf("invalid workflow type %q: must be 'endtoend' or 'postback'", config.Workflow.Type)
	}

	// Unknown source/handler types are not fatal here: the enrichment manager
	// and postback router skip them with a logged error.
	return nil
}
