// Package config loads the YAML configuration of the cvfold command.
package config

import (
	"bytes"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/cvfold/pkg/errors"
)

// Config is the cross-validation setup read from a YAML file and
// overridden by command line flags.
type Config struct {
	NSplits         int      `yaml:"n_splits" validate:"gte=2"`
	ConstrainGroups bool     `yaml:"constrain_groups"`
	Weighted        bool     `yaml:"weighted"`
	LabelColumn     string   `yaml:"label_column" validate:"required,nefield=GroupColumn"`
	GroupColumn     string   `yaml:"group_column" validate:"required"`
	FeatureColumns  []string `yaml:"feature_columns" validate:"omitempty,unique,dive,required"`
	Scoring         string   `yaml:"scoring" validate:"omitempty,oneof=mse rmse mae r2 accuracy logloss auc"`
	LogLevel        string   `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	// Alpha is the L2 penalty of the baseline regressor.
	Alpha float64 `yaml:"alpha" validate:"gte=0"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		NSplits:         5,
		ConstrainGroups: true,
		Weighted:        true,
		LogLevel:        "info",
	}
}

// Load reads path on top of Default. An empty path returns Default.
// The result is not validated; call Validate after applying overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decode yaml")
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report YAML key names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration and reports the first offending key
// as a ConfigurationError.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return errors.NewConfigurationErrorf(fe.Field(), "failed %q check (value: %v)", ruleOf(fe), fe.Value())
	}
	return errors.Wrap(err, "validate config")
}

func ruleOf(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
