/*
Package configs loads the relay's runtime settings.

Values come from environment variables, optionally layered over a config file named by
the --config flag. Every setting has a default, so the server starts with no configuration
at all in development.
*/
package configs

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Mute policies accepted by MUTE_POLICY.
const (
	// MutePolicyMember lets any room member mute any other member of the same room.
	MutePolicyMember = "member"

	// MutePolicyCreator restricts muting to the user who created the room.
	MutePolicyCreator = "creator"
)

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int
	StaticDir   string

	// Security Settings
	AllowedOrigins []string

	// Room Settings
	MaxUsersPerRoom int
	RoomTimeout     time.Duration
	MutePolicy      string

	// Observability Settings
	StatsInterval time.Duration
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("port", 3001)
	v.SetDefault("static_dir", "")
	v.SetDefault("allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")
	v.SetDefault("max_users_per_room", 10)
	v.SetDefault("room_timeout", "30m")
	v.SetDefault("mute_policy", MutePolicyMember)
	v.SetDefault("stats_interval", "5m")
}

// LoadConfig parses args (normally os.Args[1:]) and the environment into an AppConfig.
// Environment variables override the config file; the file overrides defaults.
func LoadConfig(args []string) (*AppConfig, error) {
	flags := pflag.NewFlagSet("callrelay", pflag.ContinueOnError)
	configFile := flags.String("config", "", "path to a YAML, TOML or JSON config file")
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("invalid command line: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	if err := v.BindEnv("allowed_origins", "ALLOWED_ORIGINS", "CORS_ORIGIN"); err != nil {
		return nil, fmt.Errorf("failed to bind ALLOWED_ORIGINS: %w", err)
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", *configFile, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Server Settings ---
	cfg.Environment = strings.TrimSpace(v.GetString("environment"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	port, err := strconv.Atoi(strings.TrimSpace(v.GetString("port")))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	if port < 1024 || port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the allowed range (%d-%d)", port, 1024, 65535)
	}
	cfg.Port = port

	cfg.StaticDir = strings.TrimSpace(v.GetString("static_dir"))

	// --- Security Settings ---
	cfg.AllowedOrigins, err = parseList(v.Get("allowed_origins"))
	if err != nil {
		return nil, fmt.Errorf("invalid ALLOWED_ORIGINS: %w", err)
	}

	// --- Room Settings ---
	maxUsers, err := strconv.Atoi(strings.TrimSpace(v.GetString("max_users_per_room")))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_USERS_PER_ROOM: %w", err)
	}
	if maxUsers < 1 {
		return nil, fmt.Errorf("MAX_USERS_PER_ROOM must be at least 1, got %d", maxUsers)
	}
	cfg.MaxUsersPerRoom = maxUsers

	cfg.RoomTimeout, err = parseDuration(v.GetString("room_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid ROOM_TIMEOUT: %w", err)
	}

	cfg.MutePolicy = strings.ToLower(strings.TrimSpace(v.GetString("mute_policy")))
	switch cfg.MutePolicy {
	case MutePolicyMember, MutePolicyCreator:
	default:
		return nil, fmt.Errorf("invalid MUTE_POLICY %q (want %q or %q)", cfg.MutePolicy, MutePolicyMember, MutePolicyCreator)
	}

	// --- Observability Settings ---
	cfg.StatsInterval, err = parseDuration(v.GetString("stats_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_INTERVAL: %w", err)
	}

	return cfg, nil
}

// parseDuration accepts a Go duration ("30m") or a bare integer of milliseconds ("1800000").
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)

	var d time.Duration
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		d = time.Duration(ms) * time.Millisecond
	} else {
		d, err = time.ParseDuration(raw)
		if err != nil {
			return 0, err
		}
	}

	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", raw)
	}

	return d, nil
}

// parseList accepts a comma-separated string (environment variables) or a list
// (YAML, TOML or JSON config files).
func parseList(raw any) ([]string, error) {
	switch val := raw.(type) {
	case nil:
		return []string{}, nil
	case string:
		return splitList(val), nil
	case []string:
		return splitList(strings.Join(val, ",")), nil
	case []any:
		items := make([]string, 0, len(val))
		for i, item := range val {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("item %d is %T, want string", i, item)
			}
			items = append(items, str)
		}
		return splitList(strings.Join(items, ",")), nil
	default:
		return nil, fmt.Errorf("unsupported type %T, want string or list", raw)
	}
}

func splitList(raw string) []string {
	list := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			list = append(list, trimmed)
		}
	}
	return list
}
