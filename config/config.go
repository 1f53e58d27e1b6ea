package config

import (
	"os"
	"path/filepath"

	"github.com/m4xw311/jarvis/errors"
	"gopkg.in/yaml.v3"
)

// Provisioning holds the parameters the setup command uses to create the
// agent and its supporting IAM resources.
type Provisioning struct {
	AgentName         string `yaml:"agent_name"`
	Description       string `yaml:"description"`
	Instruction       string `yaml:"instruction"`
	FoundationModel   string `yaml:"foundation_model"`
	AliasName         string `yaml:"alias_name"`
	IdleSessionTTL    int32  `yaml:"idle_session_ttl_seconds"`
	MemoryStorageDays int32  `yaml:"memory_storage_days"`
}

type Config struct {
	AgentID      string       `yaml:"agent_id"`
	AgentAliasID string       `yaml:"agent_alias_id"`
	MemoryID     string       `yaml:"memory_id"`
	Region       string       `yaml:"region"`
	EnableTrace  bool         `yaml:"enable_trace"`
	MaxRetries   int          `yaml:"max_retries"`
	Provisioning Provisioning `yaml:"provisioning"`
}

const defaultInstruction = `You are a helpful chatbot, JARVIS, answering questions users might have about their schedule and tasks.

Your primary goals include:

1. Collect relevant information about user schedule and tasks such as when it is (due), how long it'll take, location (if applicable), additional context, etc.
2. Answer relevant questions such as what tomorrow's plans are, what they should work on right now, when a specific meeting is, etc.

Remember, you do not have the tool to add meetings or tasks to an external calendar, but you can keep track of them in memory and provide a summary upon request.

You also do not have the ability to provide guidance or support on any subject other than the user's schedule and tasks.`

// Default returns the built-in configuration. Agent and alias identifiers
// have no sensible defaults; they come from the config file or from running
// the setup command.
func Default() *Config {
	return &Config{
		MemoryID:   "JARVIS-MEMORY-123",
		Region:     "us-east-1",
		MaxRetries: 3,
		Provisioning: Provisioning{
			AgentName:         "jarvis-agent",
			Description:       "Agent that helps users manage schedules and tasks",
			Instruction:       defaultInstruction,
			FoundationModel:   "anthropic.claude-3-5-sonnet-20240620-v1:0",
			AliasName:         "test",
			IdleSessionTTL:    1800,
			MemoryStorageDays: 30,
		},
	}
}

// Load reads configuration from the user's home directory and the current
// working directory, with the latter taking precedence. An explicit path, if
// given, is loaded instead of both and must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading config %s", path)
		}
		return cfg, nil
	}

	// User-level config first
	if home, err := os.UserHomeDir(); err == nil {
		userConfigPath := filepath.Join(home, ".jarvis", "config.yaml")
		if _, err := os.Stat(userConfigPath); err == nil {
			if err := loadFromFile(userConfigPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	// Project-level config overrides user-level
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectConfigPath := filepath.Join(wd, ".jarvis", "config.yaml")
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := loadFromFile(projectConfigPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Unmarshal overwrites fields present in the YAML, which gives a simple
	// merge where later files replace earlier ones field by field.
	return yaml.Unmarshal(data, cfg)
}

// ValidateChat checks that the fields the chat command needs are present.
func (c *Config) ValidateChat() error {
	if c.AgentID == "" || c.AgentAliasID == "" {
		return errors.New("agent_id and agent_alias_id must be configured; run 'jarvis setup' or edit .jarvis/config.yaml")
	}
	return nil
}
