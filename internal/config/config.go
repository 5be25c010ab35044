package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "vtt.cfg.json"

// SQLiteConfig holds the sqlite backend settings.
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// LegacyConfig locates the local cache read once during migration.
type LegacyConfig struct {
	Dir string `json:"dir" mapstructure:"dir"`
}

// StorageConfig selects and configures the durable backend.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// DBConfig holds postgres connection settings.
type DBConfig struct {
	Host          string `json:"host" mapstructure:"host"`
	Port          string `json:"port" mapstructure:"port"`
	Username      string `json:"username" mapstructure:"username"`
	Password      string `json:"password" mapstructure:"password"`
	Database      string `json:"database" mapstructure:"database"`
	NotifyChannel string `json:"notifyChannel" mapstructure:"notifyChannel"`
}

// DSN renders the postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// URL renders the postgres connection URL used by pgx.
func (c DBConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

// SyncConfig controls the persistence pipeline.
type SyncConfig struct {
	ToolKey  string        `json:"toolKey" mapstructure:"toolKey"`
	Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
}

// HubConfig configures the websocket relay and clients of it.
type HubConfig struct {
	Listen string `json:"listen" mapstructure:"listen"`
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// AssetsConfig configures the background image store.
type AssetsConfig struct {
	Dir       string `json:"dir" mapstructure:"dir"`
	BaseURL   string `json:"baseUrl" mapstructure:"baseUrl"`
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
	MaxBytes  int64  `json:"maxBytes" mapstructure:"maxBytes"`
}

// InfluxConfig holds save telemetry settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// ServerURL renders the influx endpoint.
func (c InfluxConfig) ServerURL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// GraylogConfig holds GELF log shipping settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./vttlogs")

	viper.SetDefault("sync.toolKey", "vtt_scenes")
	viper.SetDefault("sync.debounce", "800ms")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.sqlite.path", "./vtt.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "vtt")
	viper.SetDefault("db.notifyChannel", "vtt_state")

	viper.SetDefault("hub.listen", ":8090")
	viper.SetDefault("hub.url", "ws://localhost:8090/ws")
	viper.SetDefault("hub.secret", "")

	viper.SetDefault("legacy.dir", "./vttcache")

	viper.SetDefault("assets.dir", "./assets")
	viper.SetDefault("assets.baseUrl", "/assets")
	viper.SetDefault("assets.serverUrl", "")
	viper.SetDefault("assets.apiKey", "")
	viper.SetDefault("assets.maxBytes", 10<<20)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "vtt-metrics")
	viper.SetDefault("influx.bucket", "vtt_sync")

	viper.SetDefault("mcp.role", "participant")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")
}

// Load reads configuration from the JSON file in configDir and sets
// default values.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// LoadDefaults registers defaults without reading a file.
func LoadDefaults() {
	setDefaults()
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the storage backend configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
	}
}

// GetDBConfig returns postgres settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:          viper.GetString("db.host"),
		Port:          viper.GetString("db.port"),
		Username:      viper.GetString("db.username"),
		Password:      viper.GetString("db.password"),
		Database:      viper.GetString("db.database"),
		NotifyChannel: viper.GetString("db.notifyChannel"),
	}
}

// GetSyncConfig returns persistence pipeline settings. A non-positive
// debounce falls back to 800ms.
func GetSyncConfig() SyncConfig {
	d := viper.GetDuration("sync.debounce")
	if d <= 0 {
		d = 800 * time.Millisecond
	}
	return SyncConfig{
		ToolKey:  viper.GetString("sync.toolKey"),
		Debounce: d,
	}
}

// GetHubConfig returns websocket relay settings.
func GetHubConfig() HubConfig {
	return HubConfig{
		Listen: viper.GetString("hub.listen"),
		URL:    viper.GetString("hub.url"),
		Secret: viper.GetString("hub.secret"),
	}
}

// GetLegacyConfig returns the legacy cache location.
func GetLegacyConfig() LegacyConfig {
	return LegacyConfig{Dir: viper.GetString("legacy.dir")}
}

// GetAssetsConfig returns background image store settings.
func GetAssetsConfig() AssetsConfig {
	return AssetsConfig{
		Dir:       viper.GetString("assets.dir"),
		BaseURL:   viper.GetString("assets.baseUrl"),
		ServerURL: viper.GetString("assets.serverUrl"),
		APIKey:    viper.GetString("assets.apiKey"),
		MaxBytes:  viper.GetInt64("assets.maxBytes"),
	}
}

// GetInfluxConfig returns save telemetry settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetGraylogConfig returns GELF settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}
