// Package config resolves capsulectl settings. Viper stays inside this
// package; the rest of the code receives an explicit Config.
// Sources are resolved in this order: flags > env > config file > defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override,
// e.g. CAPSULECTL_REGION.
const EnvPrefix = "CAPSULECTL"

// Config is what the rest of the codebase sees
type Config struct {
	Profile string
	Region  string

	Compute ComputeConfig
	Storage StorageConfig

	CredentialsFile string
	RememberSession bool
}

// ComputeConfig holds the fixed launch parameters and wait behaviour.
type ComputeConfig struct {
	ImageID             string
	InstanceType        string
	ProjectTag          string
	DefaultInstanceName string
	WaitTimeout         time.Duration
	RebootDelay         time.Duration
}

// StorageConfig holds bucket naming and region rules.
type StorageConfig struct {
	BucketPrefix  string
	ClassicRegion string
}

var v = viper.New()

// Init sets defaults, env binding and config file search paths. A missing
// config file is not an error.
func Init(configFile string) error {
	v = viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.capsulectl")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("profile", "")
	v.SetDefault("region", "")
	v.SetDefault("image-id", "ami-0fc32db49bc3bfbb1")
	v.SetDefault("instance-type", "t2.micro")
	v.SetDefault("project-tag", "DigitalTimeCapsule")
	v.SetDefault("default-instance-name", "DefaultEC2instance")
	v.SetDefault("wait-timeout", 10*time.Minute)
	v.SetDefault("reboot-delay", 10*time.Second)
	v.SetDefault("bucket-prefix", "timecapsule-")
	v.SetDefault("classic-region", "us-east-1")
	v.SetDefault("credentials-file", "")
	v.SetDefault("remember-session", true)
}

// BindFlags lets command line flags win over every other source. Flags are
// matched by name, e.g. --region binds "region".
func BindFlags(flags *pflag.FlagSet, names ...string) error {
	for _, name := range names {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(name, f); err != nil {
			return err
		}
	}
	return nil
}

// Load reads from all sources and returns explicit Config
func Load() (*Config, error) {
	cfg := &Config{
		Profile: v.GetString("profile"),
		Region:  v.GetString("region"),
		Compute: ComputeConfig{
			ImageID:             v.GetString("image-id"),
			InstanceType:        v.GetString("instance-type"),
			ProjectTag:          v.GetString("project-tag"),
			DefaultInstanceName: v.GetString("default-instance-name"),
			WaitTimeout:         v.GetDuration("wait-timeout"),
			RebootDelay:         v.GetDuration("reboot-delay"),
		},
		Storage: StorageConfig{
			BucketPrefix:  v.GetString("bucket-prefix"),
			ClassicRegion: v.GetString("classic-region"),
		},
		CredentialsFile: v.GetString("credentials-file"),
		RememberSession: v.GetBool("remember-session"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures config is sane
func (c *Config) Validate() error {
	if c.Compute.ImageID == "" {
		return errors.New("image-id must not be empty")
	}
	if c.Compute.InstanceType == "" {
		return errors.New("instance-type must not be empty")
	}
	if c.Compute.WaitTimeout <= 0 {
		return fmt.Errorf("invalid wait-timeout: %s (must be positive)", c.Compute.WaitTimeout)
	}
	if c.Compute.RebootDelay < 0 {
		return fmt.Errorf("invalid reboot-delay: %s", c.Compute.RebootDelay)
	}
	return nil
}

// Display shows the effective configuration (for capsulectl status).
func Display(cfg *Config) string {
	configFile := v.ConfigFileUsed()
	if configFile == "" {
		configFile = "(not found)"
	}
	region := cfg.Region
	if region == "" {
		region = "(from AWS config)"
	}

	return fmt.Sprintf(`Configuration:
  region:             %s
  image-id:           %s
  instance-type:      %s
  bucket-prefix:      %s
  remember-session:   %t

Sources:
  Config file:        %s
  Environment:        %s_*
`,
		region,
		cfg.Compute.ImageID,
		cfg.Compute.InstanceType,
		cfg.Storage.BucketPrefix,
		cfg.RememberSession,
		configFile,
		EnvPrefix,
	)
}
