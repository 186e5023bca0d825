package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
)

// Config models erp.yml.
type Config struct {
	Timezone string `yaml:"timezone" json:"timezone"`
	Timer    struct {
		Rounding   string `yaml:"rounding" json:"rounding"`
		MinMinutes int    `yaml:"min_minutes" json:"min_minutes"`
	} `yaml:"timer" json:"timer"`
	Capacity struct {
		DefaultWeeklyMinutes int            `yaml:"default_weekly_minutes" json:"default_weekly_minutes"`
		Users                map[string]int `yaml:"users" json:"users,omitempty"`
		Workdays             []string       `yaml:"workdays" json:"workdays"`
	} `yaml:"capacity" json:"capacity"`
	Costs struct {
		DefaultHourlyRate   float64            `yaml:"default_hourly_rate" json:"default_hourly_rate"`
		OverBudgetThreshold float64            `yaml:"over_budget_threshold" json:"over_budget_threshold"`
		Roles               map[string]float64 `yaml:"roles" json:"roles,omitempty"`
		UserRoles           map[string]string  `yaml:"user_roles" json:"user_roles,omitempty"`
		Users               map[string]float64 `yaml:"users" json:"users,omitempty"`
	} `yaml:"costs" json:"costs"`
	Playbooks []domain.Playbook `yaml:"playbooks" json:"playbooks"`
}

// Timer rounding policies.
const (
	RoundNearest = "nearest"
	RoundUp      = "up"
	RoundDown    = "down"
)

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with erp config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("config.timezone: %w", err)
		}
	}
	switch c.Timer.Rounding {
	case "", RoundNearest, RoundUp, RoundDown:
	default:
		return fmt.Errorf("config.timer.rounding must be one of nearest, up, down")
	}
	if c.Timer.MinMinutes < 0 {
		return fmt.Errorf("config.timer.min_minutes must not be negative")
	}
	if c.Capacity.DefaultWeeklyMinutes < 0 {
		return fmt.Errorf("config.capacity.default_weekly_minutes must not be negative")
	}
	for user, minutes := range c.Capacity.Users {
		if user == "" || minutes < 0 {
			return fmt.Errorf("config.capacity.users has invalid entry %q=%d", user, minutes)
		}
	}
	for _, d := range c.Capacity.Workdays {
		if _, ok := weekdays[strings.ToLower(d)]; !ok {
			return fmt.Errorf("config.capacity.workdays has unknown day %q", d)
		}
	}
	if c.Costs.DefaultHourlyRate < 0 {
		return fmt.Errorf("config.costs.default_hourly_rate must not be negative")
	}
	if c.Costs.OverBudgetThreshold < 0 {
		return fmt.Errorf("config.costs.over_budget_threshold must not be negative")
	}
	for role, rate := range c.Costs.Roles {
		if role == "" || rate < 0 {
			return fmt.Errorf("config.costs.roles has invalid entry %q", role)
		}
	}
	for user, role := range c.Costs.UserRoles {
		if _, ok := c.Costs.Roles[role]; !ok {
			return fmt.Errorf("user %s references unknown role %s", user, role)
		}
	}
	for user, rate := range c.Costs.Users {
		if user == "" || rate < 0 {
			return fmt.Errorf("config.costs.users has invalid entry %q", user)
		}
	}
	seen := map[string]bool{}
	for _, pb := range c.Playbooks {
		if pb.Key == "" {
			return fmt.Errorf("playbook with empty key")
		}
		if seen[pb.Key] {
			return fmt.Errorf("playbook %s defined twice", pb.Key)
		}
		seen[pb.Key] = true
		for _, ph := range pb.Phases {
			if ph.Name == "" || ph.Status == "" {
				return fmt.Errorf("playbook %s has phase without name or status", pb.Key)
			}
			for _, title := range ph.Tasks {
				if strings.TrimSpace(title) == "" {
					return fmt.Errorf("playbook %s phase %s has empty task title", pb.Key, ph.Name)
				}
			}
		}
		for _, name := range pb.Deliverables {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("playbook %s has empty deliverable name", pb.Key)
			}
		}
	}
	return nil
}

// Location returns the configured timezone, UTC when unset.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Workdays returns the days that count for missing-day alerts, Mon-Fri by default.
func (c *Config) Workdays() []time.Weekday {
	if c == nil || len(c.Capacity.Workdays) == 0 {
		return []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	}
	out := make([]time.Weekday, 0, len(c.Capacity.Workdays))
	for _, d := range c.Capacity.Workdays {
		if wd, ok := weekdays[strings.ToLower(d)]; ok {
			out = append(out, wd)
		}
	}
	return out
}

// Playbook looks up a playbook by key.
func (c *Config) Playbook(key string) (domain.Playbook, bool) {
	if c == nil {
		return domain.Playbook{}, false
	}
	for _, pb := range c.Playbooks {
		if pb.Key == key {
			return pb, true
		}
	}
	return domain.Playbook{}, false
}

// WeeklyCapacityMinutes returns the per-user override or the default capacity.
func (c *Config) WeeklyCapacityMinutes(_ context.Context, userID string) (int, error) {
	if c == nil {
		return 0, nil
	}
	if m, ok := c.Capacity.Users[userID]; ok {
		return m, nil
	}
	return c.Capacity.DefaultWeeklyMinutes, nil
}

// HourlyRate resolves a user's rate: user override, then role, then default.
func (c *Config) HourlyRate(_ context.Context, userID string) (float64, error) {
	if c == nil {
		return 0, nil
	}
	if rate, ok := c.Costs.Users[userID]; ok {
		return rate, nil
	}
	if role, ok := c.Costs.UserRoles[userID]; ok {
		if rate, ok := c.Costs.Roles[role]; ok {
			return rate, nil
		}
	}
	return c.Costs.DefaultHourlyRate, nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "erp.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Unset keys keep
// their built-in defaults; a playbooks list replaces the built-in catalog.
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

const defaultTemplate = `timezone: UTC

timer:
  rounding: nearest
  min_minutes: 1

capacity:
  default_weekly_minutes: 2400
  workdays: [mon, tue, wed, thu, fri]

costs:
  default_hourly_rate: 0
  over_budget_threshold: 1.2

playbooks:
  - key: branding
    name: Branding
    phases:
      - name: Imersao
        status: a_fazer
        tasks: [Briefing com cliente, Pesquisa de mercado, Moodboard]
      - name: Criacao
        status: backlog
        tasks: [Conceito de marca, Logotipo, Paleta e tipografia]
      - name: Entrega
        status: backlog
        tasks: [Manual de marca, Fechamento de arquivos]
    deliverables: [Logotipo, Manual de marca]

  - key: website
    name: Website
    phases:
      - name: Planejamento
        status: a_fazer
        tasks: [Briefing, Arquitetura de informacao]
      - name: Design
        status: backlog
        tasks: [Wireframes, Layout desktop, Layout mobile]
      - name: Desenvolvimento
        status: backlog
        tasks: [Front-end, Integracoes, Testes]
    deliverables: [Layout aprovado, Site publicado]

  - key: campanha
    name: Campanha
    phases:
      - name: Estrategia
        status: a_fazer
        tasks: [Briefing, Plano de midia]
      - name: Producao
        status: backlog
        tasks: [Key visual, Pecas digitais, Copy]
    deliverables: [Key visual, Kit de pecas]
`
