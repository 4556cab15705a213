package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/daserver/pkg/api/auth"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// getValidator returns the shared validator. Field names in errors use the
// mapstructure keys so messages match the config file.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the struct tags and the cross-field rules that tags
// cannot express.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if err := getValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return err
	}

	return validateSemantics(cfg)
}

func validateSemantics(cfg *Config) error {
	var problems []string

	if cfg.Refresh.SignalInterval > 0 && cfg.Refresh.SignalInterval < cfg.Refresh.Period {
		problems = append(problems, fmt.Sprintf(
			"refresh.signal_interval (%s) must not be shorter than refresh.period (%s)",
			cfg.Refresh.SignalInterval, cfg.Refresh.Period))
	}

	if secret := cfg.API.JWT.Secret; secret != "" && len(secret) < auth.MinSecretLength {
		problems = append(problems, fmt.Sprintf(
			"api.jwt.secret must be at least %d characters", auth.MinSecretLength))
	}

	if cfg.Metrics.Enabled && cfg.API.IsEnabled() && cfg.Metrics.Port == cfg.API.Port {
		problems = append(problems, fmt.Sprintf(
			"metrics.port and api.port must differ (both %d)", cfg.API.Port))
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// formatValidationErrors renders each failed rule as
// "<key path>: failed '<tag>' validation".
func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// Namespace is "Config.refresh.period"; drop the root type
		path := fe.Namespace()
		if i := strings.IndexByte(path, '.'); i >= 0 {
			path = path[i+1:]
		}
		msg := fmt.Sprintf("%s: failed '%s' validation", path, fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s: failed '%s=%s' validation", path, fe.Tag(), fe.Param())
		}
		msgs = append(msgs, msg)
	}
	return errors.New(strings.Join(msgs, "; "))
}
