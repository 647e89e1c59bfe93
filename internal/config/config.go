package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the policy file stored in a workspace.
const FileName = "controlroom.yml"

//go:embed default.yml
var defaultTemplate string

// Config models controlroom.yml.
type Config struct {
	Source struct {
		BaseURL     string `yaml:"base_url"`
		APIKey      string `yaml:"api_key"`
		MarketLimit int    `yaml:"market_limit"`
	} `yaml:"source"`
	Feeds struct {
		LiveSeconds    int `yaml:"live_seconds"`
		AgingSeconds   int `yaml:"aging_seconds"`
		TimeoutSeconds int `yaml:"timeout_seconds"`
		RefreshSeconds int `yaml:"refresh_seconds"`
	} `yaml:"feeds"`
	Fallbacks struct {
		AvgFare    float64 `yaml:"avg_fare"`
		Distance   float64 `yaml:"distance"`
		LoadFactor float64 `yaml:"load_factor"`
	} `yaml:"fallbacks"`
	Rules       map[string]RulePolicy `yaml:"rules"`
	Constraints struct {
		MinPilotsUpgauge  int    `yaml:"min_pilots_upgauge"`
		ShortStaffedBelow int    `yaml:"short_staffed_below"`
		UpgaugeEquipment  string `yaml:"upgauge_equipment"`
	} `yaml:"constraints"`
	Alerts struct {
		BlockedDeadlineDays   int `yaml:"blocked_deadline_days"`
		FrequencyDeadlineDays int `yaml:"frequency_deadline_days"`
		MROWarningEvents      int `yaml:"mro_warning_events"`
		TrainingWindowDays    int `yaml:"training_window_days"`
		TrainingWarningCrew   int `yaml:"training_warning_crew"`
	} `yaml:"alerts"`
	Lifecycle struct {
		RASMRealization float64 `yaml:"rasm_realization"`
	} `yaml:"lifecycle"`
	Outcomes struct {
		TrackingPeriodDays int     `yaml:"tracking_period_days"`
		VarianceThreshold  float64 `yaml:"variance_threshold"`
	} `yaml:"outcomes"`
	RBAC struct {
		Roles map[string]RBACRole `yaml:"roles"`
	} `yaml:"rbac"`
	Webhooks []Webhook `yaml:"webhooks"`
}

// RulePolicy is one entry of the rule table. Params holds the rule's tunable constants.
type RulePolicy struct {
	Enabled *bool              `yaml:"enabled"`
	Top     int                `yaml:"top"`
	Params  map[string]float64 `yaml:"params"`
}

type RBACRole struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

type Webhook struct {
	ID      string `yaml:"id"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
	Enabled bool   `yaml:"enabled"`
}

// RuleNames lists the rule table in execution order.
var RuleNames = []string{
	"upgauge",
	"rm_action",
	"capacity_reallocation",
	"frequency_reduction",
	"retiming",
	"downgauge",
	"ops_blocked",
	"mro_impact",
	"training_compliance",
}

// Rule returns the policy for a rule, or an enabled empty policy when it is absent.
func (c *Config) Rule(name string) RulePolicy {
	if c == nil || c.Rules == nil {
		return RulePolicy{}
	}
	return c.Rules[name]
}

// On reports whether the rule is enabled. Rules default to enabled.
func (r RulePolicy) On() bool {
	return r.Enabled == nil || *r.Enabled
}

// Param returns a named constant, falling back to def when unset.
func (r RulePolicy) Param(name string, def float64) float64 {
	if v, ok := r.Params[name]; ok {
		return v
	}
	return def
}

// TopN returns the selection size, falling back to def when unset.
func (r RulePolicy) TopN(def int) int {
	if r.Top > 0 {
		return r.Top
	}
	return def
}

func (c *Config) FeedTimeout() time.Duration {
	return time.Duration(c.Feeds.TimeoutSeconds) * time.Second
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Feeds.RefreshSeconds) * time.Second
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with crctl policy init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Source.MarketLimit < 0 || c.Source.MarketLimit > 200 {
		return fmt.Errorf("config.source.market_limit must be between 0 and 200")
	}
	if c.Feeds.LiveSeconds <= 0 || c.Feeds.AgingSeconds <= c.Feeds.LiveSeconds {
		return fmt.Errorf("config.feeds requires 0 < live_seconds < aging_seconds")
	}
	if c.Feeds.TimeoutSeconds <= 0 {
		return fmt.Errorf("config.feeds.timeout_seconds must be positive")
	}
	if c.Fallbacks.AvgFare <= 0 || c.Fallbacks.Distance <= 0 {
		return fmt.Errorf("config.fallbacks avg_fare and distance must be positive")
	}
	if c.Fallbacks.LoadFactor <= 0 || c.Fallbacks.LoadFactor > 1 {
		return fmt.Errorf("config.fallbacks.load_factor must be in (0,1]")
	}
	known := map[string]bool{}
	for _, name := range RuleNames {
		known[name] = true
	}
	for name, rule := range c.Rules {
		if !known[name] {
			return fmt.Errorf("config.rules has unknown rule %s", name)
		}
		if rule.Top < 0 {
			return fmt.Errorf("rule %s has negative top", name)
		}
	}
	if c.Constraints.MinPilotsUpgauge <= 0 || c.Constraints.ShortStaffedBelow <= 0 {
		return fmt.Errorf("config.constraints pilot thresholds must be positive")
	}
	if c.Constraints.UpgaugeEquipment == "" {
		return fmt.Errorf("config.constraints.upgauge_equipment is required")
	}
	if c.Outcomes.TrackingPeriodDays <= 0 {
		return fmt.Errorf("config.outcomes.tracking_period_days must be positive")
	}
	if c.Outcomes.VarianceThreshold <= 0 {
		return fmt.Errorf("config.outcomes.variance_threshold must be positive")
	}
	if len(c.RBAC.Roles) > 0 {
		if _, ok := c.RBAC.Roles["admin"]; !ok {
			return fmt.Errorf("config.rbac.roles must include admin")
		}
		for roleID, role := range c.RBAC.Roles {
			if roleID == "" {
				return fmt.Errorf("config.rbac.roles contains empty role id")
			}
			for _, perm := range role.Permissions {
				if perm == "" {
					return fmt.Errorf("role %s has empty permission id", roleID)
				}
			}
		}
	}
	for _, hook := range c.Webhooks {
		if hook.ID == "" || hook.URL == "" {
			return fmt.Errorf("config.webhooks entries require id and url")
		}
	}
	return nil
}

// RolePermissions returns the sorted permission set granted by roles.
func (c *Config) RolePermissions(roles []string) []string {
	set := map[string]struct{}{}
	for _, r := range roles {
		role, ok := c.RBAC.Roles[r]
		if !ok {
			continue
		}
		for _, p := range role.Permissions {
			set[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns the default policy YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default policy: %v", err))
	}
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing sections keep defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}
