package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultEndpointOpenAI(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	ep := defaultEndpoint("openai")
	if ep.baseURL != "https://api.openai.com/v1" {
		t.Errorf("baseURL = %q, want the default OpenAI base URL", ep.baseURL)
	}
	if ep.apiKey != "sk-test" {
		t.Errorf("apiKey = %q, want %q", ep.apiKey, "sk-test")
	}
}

func TestDefaultEndpointCustomProvider(t *testing.T) {
	t.Setenv("CHATCORE_GROQ_BASE_URL", "https://groq.example/v1")
	t.Setenv("CHATCORE_GROQ_API_KEY", "groq-key")
	ep := defaultEndpoint("groq")
	if ep.baseURL != "https://groq.example/v1" {
		t.Errorf("baseURL = %q, want %q", ep.baseURL, "https://groq.example/v1")
	}
	if ep.apiKey != "groq-key" {
		t.Errorf("apiKey = %q, want %q", ep.apiKey, "groq-key")
	}
}

func TestLoadFileConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "model: openai/gpt-4o-mini\nsystem: be terse\nendpoints:\n  - openai=https://api.openai.com/v1\ntools:\n  - /usr/local/bin/weather\nmcp:\n  - npx mcp-server-time\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	fc, err := loadFileConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc.Model != "openai/gpt-4o-mini" {
		t.Errorf("Model = %q", fc.Model)
	}
	if fc.SystemPrompt != "be terse" {
		t.Errorf("SystemPrompt = %q", fc.SystemPrompt)
	}
	if len(fc.Endpoints) != 1 || fc.Endpoints[0] != "openai=https://api.openai.com/v1" {
		t.Errorf("Endpoints = %v", fc.Endpoints)
	}
	if len(fc.ToolPaths) != 1 || fc.ToolPaths[0] != "/usr/local/bin/weather" {
		t.Errorf("ToolPaths = %v", fc.ToolPaths)
	}
	if len(fc.MCPServers) != 1 || fc.MCPServers[0] != "npx mcp-server-time" {
		t.Errorf("MCPServers = %v", fc.MCPServers)
	}
}

func TestLoadFileConfigMissingFile(t *testing.T) {
	if _, err := loadFileConfig("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	os.Unsetenv("CHATCORE_TEST_UNSET")
	if got := getEnvOrDefault("CHATCORE_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("got %q, want %q", got, "fallback")
	}

	t.Setenv("CHATCORE_TEST_SET", "value")
	if got := getEnvOrDefault("CHATCORE_TEST_SET", "fallback"); got != "value" {
		t.Errorf("got %q, want %q", got, "value")
	}
}
