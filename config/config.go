package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hm-eit/eitbot/calendar"
	"github.com/hm-eit/eitbot/discord"
)

// Config is the top-level configuration of the bot.
type Config struct {
	// Server is the ID of the Discord guild the bot manages.
	Server int64 `yaml:"server"`

	// Roles are the names of the roles the bot assigns, e.g. Student, Gast and Gamer.
	Roles []string `yaml:"roles"`

	// Channels are the names of the text channels the bot uses.
	Channels []string `yaml:"channels"`

	// Semesters maps a semester number to the names of its study groups.
	// Every group is a guild role of the same name.
	Semesters map[int][]string `yaml:"semesters"`

	Discord  *discord.Config  `yaml:"discord"`
	Calendar *calendar.Config `yaml:"calendar"`

	// StateFile is the bbolt database that remembers posted reminder messages. Empty disables it.
	StateFile string `yaml:"state_file"`

	// MetricsListen is the address serving /metrics, e.g. 127.0.0.1:9090. Empty disables it.
	MetricsListen string `yaml:"metrics_listen"`
}

// NewConfig creates and returns a new Config instance with default settings.
func NewConfig() *Config {
	return &Config{
		Roles:     []string{},
		Channels:  []string{},
		Semesters: map[int][]string{},
		Discord:   discord.NewConfig(),
		Calendar:  calendar.NewConfig(),
		StateFile: "./data/state.db",
	}
}

// Load reads the YAML file at path on top of the defaults and validates the result.
// Unknown keys are an error.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return config, nil
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	config := NewConfig()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate reports every schema violation at once. The returned error wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error

	if c.Server <= 0 {
		errs = append(errs, errors.New("server must be a positive guild id"))
	}
	if len(c.Roles) == 0 {
		errs = append(errs, errors.New("roles must not be empty"))
	}
	if len(c.Channels) == 0 {
		errs = append(errs, errors.New("channels must not be empty"))
	}
	if len(c.Semesters) == 0 {
		errs = append(errs, errors.New("semesters must not be empty"))
	}
	errs = append(errs, blankNames("roles", c.Roles)...)
	errs = append(errs, blankNames("channels", c.Channels)...)

	for year, groups := range c.Semesters {
		if year <= 0 {
			errs = append(errs, fmt.Errorf("semesters: %d is not a semester number", year))
		}
		if len(groups) == 0 {
			errs = append(errs, fmt.Errorf("semesters: %d has no groups", year))
		}
		errs = append(errs, blankNames(fmt.Sprintf("semesters.%d", year), groups)...)
	}

	if c.Discord == nil {
		errs = append(errs, errors.New("discord section must not be empty"))
	}

	if c.Calendar == nil {
		errs = append(errs, errors.New("calendar section must not be empty"))
	} else {
		errs = append(errs, c.validateCalendar()...)
	}

	if len(errs) == 0 {
		return nil
	}

	// Map iteration makes the order random; keep reports stable.
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	return fmt.Errorf("%w:\n%w", ErrInvalidConfig, errors.Join(errs...))
}

func (c *Config) validateCalendar() []error {
	var errs []error
	cal := c.Calendar

	if _, err := time.LoadLocation(cal.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("calendar.timezone: %w", err))
	}
	if cal.RefreshInterval <= 0 {
		errs = append(errs, errors.New("calendar.refresh_interval must be positive"))
	}
	if cal.UpdateInterval <= 0 {
		errs = append(errs, errors.New("calendar.update_interval must be positive"))
	}
	if cal.Horizon < 0 {
		errs = append(errs, errors.New("calendar.horizon must not be negative"))
	}
	if cal.Limit <= 0 {
		errs = append(errs, errors.New("calendar.limit must be positive"))
	}
	if cal.Separator == "" {
		errs = append(errs, errors.New("calendar.separator must not be empty"))
	}
	if cal.FallbackChannel != "" && !contains(c.Channels, cal.FallbackChannel) {
		errs = append(errs, fmt.Errorf("calendar.fallback_channel %q is not listed in channels", cal.FallbackChannel))
	}

	return errs
}

// GuildID returns Server in the string form Discord's API uses.
func (c *Config) GuildID() string {
	return strconv.FormatInt(c.Server, 10)
}

// Years returns the configured semester numbers in ascending order.
func (c *Config) Years() []int {
	years := make([]int, 0, len(c.Semesters))
	for year := range c.Semesters {
		years = append(years, year)
	}
	sort.Ints(years)
	return years
}

// String renders the configuration as YAML with secrets masked.
func (c *Config) String() string {
	masked := *c
	if c.Discord != nil {
		discordConfig := *c.Discord
		if discordConfig.Token != "" {
			discordConfig.Token = "***"
		}
		masked.Discord = &discordConfig
	}

	out, err := yaml.Marshal(&masked)
	if err != nil {
		return fmt.Sprintf("failed to render configuration: %s", err.Error())
	}
	return strings.TrimSpace(string(out))
}

func blankNames(field string, names []string) []error {
	var errs []error
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Errorf("%s[%d] must not be blank", field, i))
		}
	}
	return errs
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
