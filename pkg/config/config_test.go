package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeConfigFile(t, "config.json", `{
		"api": {
			"baseUrl": "https://api.example.test",
			"brokerageKey": "test-brokerage",
			"apiKey": "refresh-token"
		},
		"workflow": {"type": "endtoend"},
		"enrichment": {"sources": [{"type": "mock_tracking"}]},
		"postback": {"handlers": [{"type": "csv", "outputPath": "/tmp/out.csv"}]}
	}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.API.BaseURL != "https://api.example.test" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if len(cfg.Enrichment.Sources) != 1 || cfg.Enrichment.Sources[0].Type != "mock_tracking" {
		t.Errorf("sources = %+v", cfg.Enrichment.Sources)
	}
	if len(cfg.Postback.Handlers) != 1 || cfg.Postback.Handlers[0].Type != "csv" {
		t.Errorf("handlers = %+v", cfg.Postback.Handlers)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfigFile(t, "config.yaml", `
api:
  baseUrl: https://api.example.test
  brokerageKey: test-brokerage
  bearerToken: token-123
workflow:
  type: postback
postback:
  handlers:
    - type: webhook
      url: https://hooks.example.test/freight
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Workflow.Type != "postback" {
		t.Errorf("Workflow.Type = %q, want postback", cfg.Workflow.Type)
	}
	if cfg.Postback.Handlers[0].URL != "https://hooks.example.test/freight" {
		t.Errorf("handler URL = %q", cfg.Postback.Handlers[0].URL)
	}
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, "config.json", `{
		"api": {
			"baseUrl": "https://api.example.test",
			"brokerageKey": "test-brokerage",
			"apiKey": "refresh-token"
		},
		"enrichment": {"sources": [{"type": "tracking_api", "endpoint": "https://track.example.test"}]},
		"postback": {"handlers": [{"type": "webhook", "url": "https://hooks.example.test"}]}
	}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.API.TimeoutSeconds != 30 {
		t.Errorf("API.TimeoutSeconds = %d, want 30", cfg.API.TimeoutSeconds)
	}
	if cfg.API.RetryCount != 3 {
		t.Errorf("API.RetryCount = %d, want 3", cfg.API.RetryCount)
	}
	if cfg.API.EventsURL != cfg.API.BaseURL {
		t.Errorf("EventsURL = %q, want base URL", cfg.API.EventsURL)
	}
	if cfg.Workflow.Type != "endtoend" {
		t.Errorf("Workflow.Type = %q, want endtoend default", cfg.Workflow.Type)
	}
	if cfg.Workflow.EventsLimit != 1000 {
		t.Errorf("Workflow.EventsLimit = %d, want 1000", cfg.Workflow.EventsLimit)
	}

	source := cfg.Enrichment.Sources[0]
	if source.TimeoutSeconds != 15 {
		t.Errorf("source TimeoutSeconds = %d, want 15", source.TimeoutSeconds)
	}
	if source.BrokerageKey != "test-brokerage" {
		t.Errorf("source BrokerageKey = %q, want inherited key", source.BrokerageKey)
	}

	handler := cfg.Postback.Handlers[0]
	if handler.BatchSize != 100 {
		t.Errorf("handler BatchSize = %d, want 100", handler.BatchSize)
	}
	if handler.SheetName != "Enriched_Data" {
		t.Errorf("handler SheetName = %q", handler.SheetName)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing base URL", `{"api": {"brokerageKey": "k", "apiKey": "a"}}`},
		{"missing brokerage key", `{"api": {"baseUrl": "https://x", "apiKey": "a"}}`},
		{"missing auth", `{"api": {"baseUrl": "https://x", "brokerageKey": "k"}}`},
		{"bad workflow type", `{"api": {"baseUrl": "https://x", "brokerageKey": "k", "apiKey": "a"}, "workflow": {"type": "sideways"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, "config.json", tt.content)
			if _, err := LoadConfig(path); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
