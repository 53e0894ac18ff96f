// Package config provides configuration management for Dirigo
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dirigo-idm/dirigo/pkg/interfaces"
	"github.com/dirigo-idm/dirigo/pkg/types"
)

// BaseConfig provides common configuration functionality
type BaseConfig struct {
	mu        sync.RWMutex
	validator *validator.Validate
}

// NewBaseConfig creates a new base configuration
func NewBaseConfig() *BaseConfig {
	return &BaseConfig{
		validator: validator.New(),
	}
}

// validateStruct validates an outer configuration struct
func (c *BaseConfig) validateStruct(target interface{}) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.validator == nil {
		c.validator = validator.New()
	}
	return c.validator.Struct(target)
}

// loadFile loads a configuration file into target
func (c *BaseConfig) loadFile(path, configType string, target interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(configType)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return v.Unmarshal(target)
}

// saveYAML writes a configuration struct to a YAML file
func (c *BaseConfig) saveYAML(path string, source interface{}) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := yaml.Marshal(source)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DirectoryConfig represents directory backend configuration
type DirectoryConfig struct {
	Backend  types.BackendType `yaml:"backend" json:"backend" validate:"required,oneof=sqlite neo4j"`
	Path     string            `yaml:"path,omitempty" json:"path,omitempty"`
	URI      string            `yaml:"uri,omitempty" json:"uri,omitempty"`
	Username string            `yaml:"username,omitempty" json:"username,omitempty"`
	Password string            `yaml:"password,omitempty" json:"password,omitempty"`
	Database string            `yaml:"database,omitempty" json:"database,omitempty"`
	Timeout  time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	RetryAttempts int           `yaml:"retry_attempts,omitempty" json:"retry_attempts,omitempty"`
	RetryDelay    time.Duration `yaml:"retry_delay,omitempty" json:"retry_delay,omitempty"`
}

// NewDirectoryConfig creates a new directory configuration
func NewDirectoryConfig() *DirectoryConfig {
	return &DirectoryConfig{
		Backend:       types.BackendSQLite,
		Path:          "./data/directory.db",
		URI:           "bolt://localhost:7687",
		Username:      "neo4j",
		Database:      "neo4j",
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	}
}

// ProvisioningConfig carries the POSIX provisioning defaults. Ambient UI
// context of the original console (enabled plugins, department scope) is
// threaded explicitly through this struct rather than held as global state.
type ProvisioningConfig struct {
	HomeDirectoryBase string                 `yaml:"home_directory_base" json:"home_directory_base" validate:"required"`
	DefaultShell      string                 `yaml:"default_shell" json:"default_shell" validate:"required"`
	ShellAllowList    []string               `yaml:"shell_allow_list,omitempty" json:"shell_allow_list,omitempty"`
	DefaultGroupMode  types.PrimaryGroupMode `yaml:"default_group_mode" json:"default_group_mode" validate:"required,oneof=select_existing create_personal"`
	TrustEnabled      bool                   `yaml:"trust_enabled" json:"trust_enabled"`
	DepartmentScope   string                 `yaml:"department_scope,omitempty" json:"department_scope,omitempty"`
}

// NewProvisioningConfig creates a new provisioning configuration
func NewProvisioningConfig() *ProvisioningConfig {
	return &ProvisioningConfig{
		HomeDirectoryBase: "/home",
		DefaultShell:      "/bin/bash",
		ShellAllowList: []string{
			"/bin/bash",
			"/bin/sh",
			"/bin/zsh",
			"/usr/bin/fish",
			"/sbin/nologin",
			"/bin/false",
		},
		DefaultGroupMode: types.GroupModeCreatePersonal,
		TrustEnabled:     true,
	}
}

// CacheConfig represents the Redis read-cache configuration
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Host     string        `yaml:"host,omitempty" json:"host,omitempty"`
	Port     int           `yaml:"port,omitempty" json:"port,omitempty"`
	Password string        `yaml:"password,omitempty" json:"password,omitempty"`
	DB       int           `yaml:"db,omitempty" json:"db,omitempty"`
	PoolSize int           `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`
}

// NewCacheConfig creates a new cache configuration
func NewCacheConfig() *CacheConfig {
	return &CacheConfig{
		Enabled:  false,
		Host:     "localhost",
		Port:     6379,
		DB:       0,
		PoolSize: 10,
		TTL:      30 * time.Second,
	}
}

// EventsConfig represents the NATS lifecycle-event publisher configuration
type EventsConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	URLs          []string      `yaml:"urls,omitempty" json:"urls,omitempty"`
	Username      string        `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string        `yaml:"password,omitempty" json:"password,omitempty"`
	Token         string        `yaml:"token,omitempty" json:"token,omitempty"`
	StreamName    string        `yaml:"stream_name,omitempty" json:"stream_name,omitempty"`
	SubjectPrefix string        `yaml:"subject_prefix,omitempty" json:"subject_prefix,omitempty"`
	MaxReconnect  int           `yaml:"max_reconnect,omitempty" json:"max_reconnect,omitempty"`
	ReconnectWait time.Duration `yaml:"reconnect_wait,omitempty" json:"reconnect_wait,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MaxAge        time.Duration `yaml:"max_age,omitempty" json:"max_age,omitempty"`
}

// NewEventsConfig creates a new events configuration
func NewEventsConfig() *EventsConfig {
	return &EventsConfig{
		Enabled:       false,
		URLs:          []string{"nats://localhost:4222"},
		StreamName:    "IDENTITY_EVENTS",
		SubjectPrefix: "identity",
		MaxReconnect:  -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
		MaxAge:        7 * 24 * time.Hour,
	}
}

// APIConfig represents API server configuration
type APIConfig struct {
	Host        string        `yaml:"host" json:"host" validate:"required"`
	Port        int           `yaml:"port" json:"port" validate:"required,gt=0"`
	TLSEnabled  bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCert     string        `yaml:"tls_cert,omitempty" json:"tls_cert,omitempty"`
	TLSKey      string        `yaml:"tls_key,omitempty" json:"tls_key,omitempty"`
	CORSEnabled bool          `yaml:"cors_enabled" json:"cors_enabled"`
	CORSOrigins []string      `yaml:"cors_origins,omitempty" json:"cors_origins,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// NewAPIConfig creates a new API configuration
func NewAPIConfig() *APIConfig {
	return &APIConfig{
		Host:        "localhost",
		Port:        8080,
		TLSEnabled:  false,
		CORSEnabled: true,
		CORSOrigins: []string{"*"},
		Timeout:     30 * time.Second,
	}
}

// CoreConfig represents the main Dirigo configuration
type CoreConfig struct {
	*BaseConfig  `yaml:"-" json:"-"`
	Directory    *DirectoryConfig    `yaml:"directory" json:"directory" validate:"required"`
	Provisioning *ProvisioningConfig `yaml:"provisioning" json:"provisioning" validate:"required"`
	Cache        *CacheConfig        `yaml:"cache,omitempty" json:"cache,omitempty"`
	Events       *EventsConfig       `yaml:"events,omitempty" json:"events,omitempty"`
	API          *APIConfig          `yaml:"api,omitempty" json:"api,omitempty"`

	OperatorDBPath string `yaml:"operator_db_path,omitempty" json:"operator_db_path,omitempty"`
	JWTSecret      string `yaml:"jwt_secret,omitempty" json:"jwt_secret,omitempty"`

	LogLevel string `yaml:"log_level,omitempty" json:"log_level,omitempty"`
	LogFile  string `yaml:"log_file,omitempty" json:"log_file,omitempty"`

	MetricsEnabled bool `yaml:"metrics_enabled" json:"metrics_enabled"`
	AuditEnabled   bool `yaml:"audit_enabled" json:"audit_enabled"`
}

// NewCoreConfig creates a new core configuration with defaults
func NewCoreConfig() *CoreConfig {
	return &CoreConfig{
		BaseConfig:     NewBaseConfig(),
		Directory:      NewDirectoryConfig(),
		Provisioning:   NewProvisioningConfig(),
		Cache:          NewCacheConfig(),
		Events:         NewEventsConfig(),
		API:            NewAPIConfig(),
		OperatorDBPath: "./data/operators.db",
		LogLevel:       "info",
		MetricsEnabled: true,
		AuditEnabled:   true,
	}
}

// Validate validates the configuration
func (c *CoreConfig) Validate() error {
	if c.BaseConfig == nil {
		c.BaseConfig = NewBaseConfig()
	}
	return c.validateStruct(c)
}

// FromJSONFile loads configuration from a JSON file
func (c *CoreConfig) FromJSONFile(path string) error {
	if c.BaseConfig == nil {
		c.BaseConfig = NewBaseConfig()
	}
	return c.loadFile(path, "json", c)
}

// FromYAMLFile loads configuration from a YAML file
func (c *CoreConfig) FromYAMLFile(path string) error {
	if c.BaseConfig == nil {
		c.BaseConfig = NewBaseConfig()
	}
	return c.loadFile(path, "yaml", c)
}

// ToYAMLFile saves configuration to a YAML file
func (c *CoreConfig) ToYAMLFile(path string) error {
	if c.BaseConfig == nil {
		c.BaseConfig = NewBaseConfig()
	}
	return c.saveYAML(path, c)
}

// ShellAllowed reports whether a login shell passes the configured allow-list.
// An empty allow-list permits free text.
func (c *CoreConfig) ShellAllowed(shell string) bool {
	if len(c.Provisioning.ShellAllowList) == 0 {
		return true
	}
	for _, allowed := range c.Provisioning.ShellAllowList {
		if allowed == shell {
			return true
		}
	}
	return false
}

// ConfigManager implements the configuration manager interface
type ConfigManager struct {
	config map[string]interface{}
	mu     sync.RWMutex
	viper  *viper.Viper
}

// NewConfigManager creates a new configuration manager
func NewConfigManager() interfaces.ConfigManager {
	return &ConfigManager{
		config: make(map[string]interface{}),
		viper:  viper.New(),
	}
}

// Load loads configuration from a file
func (cm *ConfigManager) Load(ctx context.Context, path string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.viper.SetConfigFile(path)

	if err := cm.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cm.config = cm.viper.AllSettings()
	return nil
}

// Get retrieves a configuration value
func (cm *ConfigManager) Get(key string) interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return cm.viper.Get(key)
}

// Set sets a configuration value
func (cm *ConfigManager) Set(key string, value interface{}) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.viper.Set(key, value)
	cm.config[key] = value
	return nil
}

// Save saves configuration to a file
func (cm *ConfigManager) Save(ctx context.Context, path string) error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return cm.viper.WriteConfigAs(path)
}

// Watch watches for configuration changes
func (cm *ConfigManager) Watch(ctx context.Context, callback func(key string, value interface{})) error {
	cm.viper.WatchConfig()
	cm.viper.OnConfigChange(func(e fsnotify.Event) {
		cm.mu.Lock()
		defer cm.mu.Unlock()

		cm.config = cm.viper.AllSettings()

		for key, value := range cm.config {
			callback(key, value)
		}
	})

	return nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv(prefix string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return v
}

// MergeConfigs merges multiple configurations
func MergeConfigs(configs ...map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	for _, config := range configs {
		for key, value := range config {
			result[key] = value
		}
	}

	return result
}

// fieldTagName resolves the json tag name of a struct field, used by tests
// and tooling that address config fields by wire name
func fieldTagName(field reflect.StructField) string {
	tagName := field.Tag.Get("json")
	if tagName == "" {
		return strings.ToLower(field.Name)
	}
	return strings.Split(tagName, ",")[0]
}
