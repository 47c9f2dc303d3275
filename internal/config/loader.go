package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every configuration key in the environment,
// e.g. AGENTSVC_MODEL_API_KEY for model.api_key.
const EnvPrefix = "AGENTSVC"

// EnvLookup resolves an environment variable.
type EnvLookup func(string) (string, bool)

// DefaultEnvLookup reads the process environment.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// DefaultEnvAliases maps configuration keys to the environment names the
// service has always honored. They are consulted after the prefixed name.
func DefaultEnvAliases() map[string][]string {
	return map[string][]string{
		"model.endpoint":    {"AZURE_OPENAI_ENDPOINT"},
		"model.deployment":  {"AZURE_OPENAI_DEPLOYMENT_NAME"},
		"model.api_key":     {"AZURE_OPENAI_API_KEY"},
		"model.api_version": {"AZURE_OPENAI_API_VERSION"},
		"server.port":       {"PYDANTIC_AGENT_PORT"},
	}
}

// Option customizes Load.
type Option func(*loadOptions)

type loadOptions struct {
	configPath string
	searchDirs []string
	env        EnvLookup
	aliases    map[string][]string
}

// WithConfigPath reads the given file instead of searching for agentsvc.yaml.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) { o.configPath = path }
}

// WithSearchDirs replaces the directories searched for agentsvc.yaml.
func WithSearchDirs(dirs ...string) Option {
	return func(o *loadOptions) { o.searchDirs = dirs }
}

// WithEnv replaces the environment lookup.
func WithEnv(lookup EnvLookup) Option {
	return func(o *loadOptions) {
		if lookup != nil {
			o.env = lookup
		}
	}
}

// WithEnvAliases replaces the legacy environment names.
func WithEnvAliases(aliases map[string][]string) Option {
	return func(o *loadOptions) { o.aliases = aliases }
}

// Load assembles the configuration from defaults, an optional YAML file and
// the environment, in increasing precedence, then validates it.
func Load(opts ...Option) (Config, Metadata, error) {
	o := loadOptions{
		searchDirs: []string{".", "$HOME/.agentsvc"},
		env:        DefaultEnvLookup,
		aliases:    DefaultEnvAliases(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	defaults := Defaults()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	meta := Metadata{sources: map[string]ValueSource{}}
	if err := readConfigFile(v, o); err != nil {
		return Config{}, meta, err
	}
	meta.ConfigFile = v.ConfigFileUsed()

	for _, key := range sortedKeys(defaults) {
		if meta.ConfigFile != "" && v.InConfig(key) {
			meta.sources[key] = SourceFile
		}
		for _, name := range envNames(key, o.aliases) {
			if value, ok := o.env(name); ok && strings.TrimSpace(value) != "" {
				v.Set(key, value)
				meta.sources[key] = SourceEnv
				break
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, meta, fmt.Errorf("decode configuration: %w", err)
	}
	normalize(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, meta, err
	}

	if cfg.Model.Provider != "mock" && cfg.Model.APIKey == "" {
		meta.Warnings = append(meta.Warnings, fmt.Sprintf(
			"no API key configured for provider %s (set AZURE_OPENAI_API_KEY or %s_MODEL_API_KEY); every run will fail until one is provided",
			cfg.Model.Provider, EnvPrefix))
	}
	return cfg, meta, nil
}

func readConfigFile(v *viper.Viper, o loadOptions) error {
	if o.configPath != "" {
		v.SetConfigFile(o.configPath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", o.configPath, err)
		}
		return nil
	}

	v.SetConfigName("agentsvc")
	v.SetConfigType("yaml")
	for _, dir := range o.searchDirs {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

func envNames(key string, aliases map[string][]string) []string {
	prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	return append([]string{prefixed}, aliases[key]...)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func normalize(cfg *Config) {
	cfg.Model.Provider = strings.ToLower(strings.TrimSpace(cfg.Model.Provider))
	cfg.Model.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Model.Endpoint), "/")
	cfg.Model.APIKey = strings.TrimSpace(cfg.Model.APIKey)

	origins := cfg.Server.AllowedOrigins[:0]
	for _, origin := range cfg.Server.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	cfg.Server.AllowedOrigins = origins
}

// Addr is the listen address of the HTTP service.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// Validate checks every bound and reports all problems at once.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describeFieldError(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if":
		return key + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", key, fe.Param(), fe.Value())
	case "gtfield", "gtefield":
		return fmt.Sprintf("%s must be greater than %s, got %v", key, snakeCase(fe.Param()), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s, got %v", key, fe.Param(), fe.Value())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s, got %v", key, fe.Param(), fe.Value())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s, got %v", key, fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s failed %s", key, fe.Tag())
}

func snakeCase(name string) string {
	var sb strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
