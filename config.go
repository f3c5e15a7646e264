package sqsclient

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config identifies one logical SQS connection: the AWS region, the static
// credentials used to sign requests, and the URL of the queue all operations
// are bound to. A Config is immutable once a [Client] has been built from it.
//
// Two Configs whose four fields are equal describe the same logical client;
// [Registry.GetOrCreate] uses this equality to deduplicate instances.
type Config struct {
	Region          string `env:"SQS_REGION"            validate:"required"`
	AccessKeyID     string `env:"SQS_ACCESS_KEY_ID"     validate:"required"`
	SecretAccessKey string `env:"SQS_SECRET_ACCESS_KEY" validate:"required"`
	QueueURL        string `env:"SQS_QUEUE_URL"         validate:"required"`
}

// ConfigFromEnv builds a Config from the SQS_REGION, SQS_ACCESS_KEY_ID,
// SQS_SECRET_ACCESS_KEY and SQS_QUEUE_URL environment variables.
// If any variable is unset or empty it returns a [*ConfigurationError]
// naming every missing field.
func ConfigFromEnv() (Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse SQS environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

var configValidator = validator.New()

// Human-readable labels for ConfigurationError, keyed by struct field name.
var configFieldLabels = map[string]string{
	"Region":          "region",
	"AccessKeyID":     "access key ID",
	"SecretAccessKey": "secret access key",
	"QueueURL":        "queue URL",
}

func (c Config) validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate SQS connection config: %w", err)
	}

	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, configFieldLabels[fe.StructField()])
	}

	return &ConfigurationError{Missing: missing}
}

// key returns a stable identity string for the Config, used to collapse
// concurrent registry builds for the same configuration.
func (c Config) key() string {
	return strings.Join([]string{c.Region, c.AccessKeyID, c.SecretAccessKey, c.QueueURL}, "\x00")
}
