package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config holds the parsed command-line configuration for a single
// run, mirroring the flag groupings of a typical multi-provider chat
// CLI: model selection, provider endpoints, tool loading, and context
// persistence.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	MaxHistory  int
	Timeout     time.Duration
	SystemPrompt string

	Endpoints map[string]endpoint // provider name -> endpoint

	ToolPaths  []string
	MCPServers []string

	Prompt    string
	ContextID string
	ContextDir string

	Quiet bool
	Debug bool
}

type endpoint struct {
	baseURL string
	apiKey  string
}

func defineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "model",
			Aliases: []string{"m"},
			Usage:   "Model to use, in provider/model form (e.g. openai/gpt-4o)",
			Value:   getEnvOrDefault("CHATCORE_MODEL", "openai/gpt-4o-mini"),
		},
		&cli.Float64Flag{
			Name:  "temp",
			Usage: "Sampling temperature (parsed but not sent to the provider)",
			Value: 0.7,
		},
		&cli.IntFlag{
			Name:  "maxtokens",
			Usage: "Maximum tokens to generate (parsed but not sent to the provider)",
			Value: 4096,
		},
		&cli.IntFlag{
			Name:  "maxhistory",
			Usage: "Maximum messages to keep in a persisted context (0 = unlimited)",
			Value: 0,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Per-request timeout (parsed but not applied to requests)",
			Value: 120 * time.Second,
		},
		&cli.StringFlag{
			Name:    "system",
			Aliases: []string{"s"},
			Usage:   "System prompt",
		},

		&cli.StringSliceFlag{
			Name:  "endpoint",
			Usage: "Provider endpoint as name=baseURL (can be repeated); API key read from CHATCORE_<NAME>_API_KEY",
		},

		&cli.StringSliceFlag{
			Name:    "tool",
			Aliases: []string{"t"},
			Usage:   "Shell tool executable path (can be specified multiple times)",
		},
		&cli.StringSliceFlag{
			Name:  "mcp",
			Usage: "MCP server spec (can be specified multiple times)",
		},

		&cli.StringFlag{
			Name:    "prompt",
			Aliases: []string{"p"},
			Usage:   "Prompt text (reads stdin if omitted)",
		},
		&cli.StringFlag{
			Name:    "context",
			Aliases: []string{"c"},
			Usage:   "Persist the conversation under this context name",
		},
		&cli.StringFlag{
			Name:  "context-dir",
			Usage: "Directory to persist contexts under",
			Value: getEnvOrDefault("CHATCORE_CONTEXT_DIR", ""),
		},

		&cli.StringFlag{
			Name:  "config",
			Usage: "YAML file providing defaults for model/endpoints/tools/mcp (CLI flags override it)",
		},

		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress all stdout output, including the reply",
		},
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"d"},
			Usage:   "Enable debug logging",
		},
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// fileConfig is the shape of the optional --config YAML file: defaults
// for whatever the caller doesn't override on the command line.
type fileConfig struct {
	Model        string   `yaml:"model"`
	SystemPrompt string   `yaml:"system"`
	Endpoints    []string `yaml:"endpoints"` // "name=baseURL" entries, same form as --endpoint
	ToolPaths    []string `yaml:"tools"`
	MCPServers   []string `yaml:"mcp"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &fc, nil
}

func parseConfig(cmd *cli.Command) (*Config, error) {
	cfg := &Config{
		Model:        cmd.String("model"),
		Temperature:  cmd.Float64("temp"),
		MaxTokens:    cmd.Int("maxtokens"),
		MaxHistory:   cmd.Int("maxhistory"),
		Timeout:      cmd.Duration("timeout"),
		SystemPrompt: cmd.String("system"),
		ToolPaths:    cmd.StringSlice("tool"),
		MCPServers:   cmd.StringSlice("mcp"),
		Prompt:       cmd.String("prompt"),
		ContextID:    cmd.String("context"),
		ContextDir:   cmd.String("context-dir"),
		Quiet:        cmd.Bool("quiet"),
		Debug:        cmd.Bool("debug"),
		Endpoints:    map[string]endpoint{},
	}

	endpointSpecs := cmd.StringSlice("endpoint")

	if path := cmd.String("config"); path != "" {
		fc, err := loadFileConfig(path)
		if err != nil {
			return nil, err
		}
		if !cmd.IsSet("model") && fc.Model != "" {
			cfg.Model = fc.Model
		}
		if !cmd.IsSet("system") && fc.SystemPrompt != "" {
			cfg.SystemPrompt = fc.SystemPrompt
		}
		if !cmd.IsSet("endpoint") {
			endpointSpecs = fc.Endpoints
		}
		if !cmd.IsSet("tool") {
			cfg.ToolPaths = fc.ToolPaths
		}
		if !cmd.IsSet("mcp") {
			cfg.MCPServers = fc.MCPServers
		}
	}

	for _, spec := range endpointSpecs {
		name, baseURL, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("--endpoint must be name=baseURL, got %q", spec)
		}
		cfg.Endpoints[name] = endpoint{
			baseURL: baseURL,
			apiKey:  os.Getenv("CHATCORE_" + strings.ToUpper(name) + "_API_KEY"),
		}
	}

	// Every model's provider gets a default endpoint against the
	// standard OpenAI-compatible base URL if --endpoint didn't name it
	// explicitly, so `--model openai/gpt-4o-mini` alone works given
	// OPENAI_API_KEY in the environment.
	provider, _, ok := strings.Cut(cfg.Model, "/")
	if ok {
		if _, exists := cfg.Endpoints[provider]; !exists {
			cfg.Endpoints[provider] = defaultEndpoint(provider)
		}
	}

	return cfg, nil
}

func defaultEndpoint(provider string) endpoint {
	switch provider {
	case "openai":
		return endpoint{baseURL: "https://api.openai.com/v1", apiKey: os.Getenv("OPENAI_API_KEY")}
	default:
		return endpoint{
			baseURL: os.Getenv("CHATCORE_" + strings.ToUpper(provider) + "_BASE_URL"),
			apiKey:  os.Getenv("CHATCORE_" + strings.ToUpper(provider) + "_API_KEY"),
		}
	}
}
