package logging

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	apperrors "github.com/leeforge/logfactory/errors"
)

// DictConfig is the declarative logging configuration: named formatters,
// filters and handlers, wired to loggers by name.
type DictConfig struct {
	Version                int                        `mapstructure:"version" json:"version" yaml:"version" validate:"required,eq=1"`
	Incremental            bool                       `mapstructure:"incremental" json:"incremental" yaml:"incremental"`
	DisableExistingLoggers *bool                      `mapstructure:"disable_existing_loggers" json:"disable_existing_loggers" yaml:"disable_existing_loggers"`
	Formatters             map[string]FormatterConfig `mapstructure:"formatters" json:"formatters" yaml:"formatters" validate:"dive"`
	Filters                map[string]FilterConfig    `mapstructure:"filters" json:"filters" yaml:"filters" validate:"dive"`
	Handlers               map[string]HandlerConfig   `mapstructure:"handlers" json:"handlers" yaml:"handlers" validate:"dive"`
	Loggers                map[string]LoggerConfig    `mapstructure:"loggers" json:"loggers" yaml:"loggers" validate:"dive"`
	Root                   *LoggerConfig              `mapstructure:"root" json:"root" yaml:"root"`
}

// DisablesExisting reports whether loggers not named in the configuration are
// disabled when it is applied. Unset means true.
func (c *DictConfig) DisablesExisting() bool {
	return c.DisableExistingLoggers == nil || *c.DisableExistingLoggers
}

type FormatterConfig struct {
	Format  string `mapstructure:"format" json:"format" yaml:"format"`
	DateFmt string `mapstructure:"datefmt" json:"datefmt" yaml:"datefmt"`
	Style   string `mapstructure:"style" json:"style" yaml:"style" validate:"omitempty,eq=%"`
}

type FilterConfig struct {
	Name string `mapstructure:"name" json:"name" yaml:"name"`
}

// HandlerConfig holds the settings of one handler. Keys may be spelled in
// camelCase or snake_case.
type HandlerConfig struct {
	Class     string   `mapstructure:"class" json:"class" yaml:"class" validate:"omitempty,handler_class"`
	Level     string   `mapstructure:"level" json:"level" yaml:"level" validate:"omitempty,log_level"`
	Formatter string   `mapstructure:"formatter" json:"formatter" yaml:"formatter"`
	Filters   []string `mapstructure:"filters" json:"filters" yaml:"filters"`

	Stream string `mapstructure:"stream" json:"stream" yaml:"stream" validate:"omitempty,oneof=ext://sys.stderr ext://sys.stdout stderr stdout"`
	Color  bool   `mapstructure:"color" json:"color" yaml:"color"`

	Filename string `mapstructure:"filename" json:"filename" yaml:"filename"`
	Mode     string `mapstructure:"mode" json:"mode" yaml:"mode" default:"a" validate:"oneof=a w a+ w+"`
	Encoding string `mapstructure:"encoding" json:"encoding" yaml:"encoding"`
	// Delay is accepted for compatibility; files are always opened eagerly.
	Delay bool `mapstructure:"delay" json:"delay" yaml:"delay"`

	MaxBytes    int64 `mapstructure:"max_bytes" json:"maxBytes" yaml:"max_bytes" validate:"gte=0"`
	BackupCount int   `mapstructure:"backup_count" json:"backupCount" yaml:"backup_count" validate:"gte=0"`

	When     string `mapstructure:"when" json:"when" yaml:"when" default:"h" validate:"rotation_unit"`
	Interval int    `mapstructure:"interval" json:"interval" yaml:"interval" default:"1" validate:"gte=0"`
	UTC      bool   `mapstructure:"utc" json:"utc" yaml:"utc"`

	MaxSize  int  `mapstructure:"max_size" json:"maxSize" yaml:"max_size" default:"100" validate:"gte=0"`
	MaxAge   int  `mapstructure:"max_age" json:"maxAge" yaml:"max_age" validate:"gte=0"`
	Compress bool `mapstructure:"compress" json:"compress" yaml:"compress"`
}

// Kind resolves Class. Decoded configurations always hold a known class.
func (h HandlerConfig) Kind() HandlerKind {
	kind, _ := KindForClass(h.Class)
	return kind
}

type LoggerConfig struct {
	Level     string   `mapstructure:"level" json:"level" yaml:"level" validate:"omitempty,log_level"`
	Handlers  []string `mapstructure:"handlers" json:"handlers" yaml:"handlers"`
	Filters   []string `mapstructure:"filters" json:"filters" yaml:"filters"`
	Propagate *bool    `mapstructure:"propagate" json:"propagate" yaml:"propagate"`
}

// Propagates reports whether records continue to ancestor handlers. Unset
// means true.
func (l LoggerConfig) Propagates() bool {
	return l.Propagate == nil || *l.Propagate
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("mapstructure"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("log_level", func(fl validator.FieldLevel) bool {
			_, err := ParseLevel(fl.Field().String())
			return err == nil
		})
		_ = validate.RegisterValidation("handler_class", func(fl validator.FieldLevel) bool {
			_, ok := KindForClass(fl.Field().String())
			return ok
		})
		_ = validate.RegisterValidation("rotation_unit", func(fl validator.FieldLevel) bool {
			_, err := parseWhen(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// normalizeKey folds camelCase, snake_case and kebab-case to one spelling.
func normalizeKey(s string) string {
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	return strings.ToLower(s)
}

// DecodeDictConfig converts a loaded document into a validated DictConfig.
// Every failure is a shape error naming the offending field.
func DecodeDictConfig(raw map[string]any) (*DictConfig, error) {
	cfg := &DictConfig{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		MatchName: func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		},
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeShape, "build config decoder")
	}
	if err := dec.Decode(raw); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeShape, "decode logging config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fills defaults and checks field values and cross references.
func (c *DictConfig) Validate() error {
	if err := applyDefaults(c); err != nil {
		return err
	}
	if err := configValidator().Struct(c); err != nil {
		return validationError(err)
	}
	return c.checkReferences()
}

// applyDefaults fills tag defaults. Map values are copies, so each one is
// defaulted and stored back.
func applyDefaults(cfg *DictConfig) error {
	if err := defaults.Set(cfg); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeShape, "apply config defaults")
	}
	for name, h := range cfg.Handlers {
		if err := defaults.Set(&h); err != nil {
			return shapeError("handlers."+name, err.Error())
		}
		cfg.Handlers[name] = h
	}
	for name, l := range cfg.Loggers {
		if err := defaults.Set(&l); err != nil {
			return shapeError("loggers."+name, err.Error())
		}
		cfg.Loggers[name] = l
	}
	if cfg.Root != nil {
		if err := defaults.Set(cfg.Root); err != nil {
			return shapeError("root", err.Error())
		}
	}
	return nil
}

func shapeError(field, msg string) error {
	return apperrors.Newf(apperrors.ErrorTypeShape, "%s: %s", field, msg).WithDetail("field", field)
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !apperrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.Wrap(err, apperrors.ErrorTypeShape, "validate logging config")
	}
	fe := fieldErrs[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	msg := fmt.Sprintf("failed %q check", fe.Tag())
	if fe.Param() != "" {
		msg = fmt.Sprintf("failed %q check (%s)", fe.Tag(), fe.Param())
	}
	if v := fe.Value(); v != nil && fe.Tag() != "required" {
		msg += fmt.Sprintf(", got %v", v)
	}
	return shapeError(field, msg)
}

// checkReferences verifies that every name used to wire the configuration
// is declared, and that handlers have a class and, for files, a filename.
// Incremental configurations only adjust existing objects and skip these
// checks.
func (c *DictConfig) checkReferences() error {
	for _, name := range sortedKeys(c.Formatters) {
		if _, err := NewFormatter(c.Formatters[name].Format, c.Formatters[name].DateFmt); err != nil {
			return shapeError("formatters."+name+".format", err.Error())
		}
	}
	if c.Incremental {
		return nil
	}
	for _, name := range sortedKeys(c.Handlers) {
		h := c.Handlers[name]
		field := "handlers." + name
		if h.Class == "" {
			return shapeError(field+".class", "required")
		}
		if h.Formatter != "" {
			if _, ok := c.Formatters[h.Formatter]; !ok {
				return shapeError(field+".formatter", fmt.Sprintf("unknown formatter %q", h.Formatter))
			}
		}
		if err := c.checkFilters(field+".filters", h.Filters); err != nil {
			return err
		}
		if h.Kind().writesFile() && h.Filename == "" {
			return shapeError(field+".filename", "required for class "+h.Class)
		}
	}
	for _, name := range sortedKeys(c.Loggers) {
		if err := c.checkLogger("loggers."+name, c.Loggers[name]); err != nil {
			return err
		}
	}
	if c.Root != nil {
		return c.checkLogger("root", *c.Root)
	}
	return nil
}

func (c *DictConfig) checkLogger(field string, l LoggerConfig) error {
	for _, h := range l.Handlers {
		if _, ok := c.Handlers[h]; !ok {
			return shapeError(field+".handlers", fmt.Sprintf("unknown handler %q", h))
		}
	}
	return c.checkFilters(field+".filters", l.Filters)
}

func (c *DictConfig) checkFilters(field string, names []string) error {
	for _, f := range names {
		if _, ok := c.Filters[f]; !ok {
			return shapeError(field, fmt.Sprintf("unknown filter %q", f))
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
