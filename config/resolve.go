package config

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"reflect"

	"github.com/spf13/viper"
)

// ErrConfiguration is matched by every ConfigurationError.
var ErrConfiguration = errors.New("invalid liquid configuration")

// ConfigurationError reports a setting whose value has the wrong type or is
// out of range.
type ConfigurationError struct {
	Key    string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s: %s (got %T %v)", e.Key, e.Reason, e.Value, e.Value)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Resolve builds Options from the settings store and explicit arguments.
// A nil store behaves as an empty one. Resolve never writes to the store.
func Resolve(explicit Explicit, store *viper.Viper) (Options, error) {
	r := &resolver{store: store}

	opts := Options{
		TemplateFolder:      r.str(KeyTemplateFolder, explicit.TemplateFolder, DefaultTemplateFolder, true),
		CacheSize:           r.capacity(KeyCacheSize, explicit.CacheSize, DefaultCacheSize),
		ExpressionCacheSize: r.capacity(KeyExpressionCacheSize, explicit.ExpressionCacheSize, DefaultExpressionCacheSize),
		Autoescape:          r.boolean(KeyAutoescape, explicit.Autoescape, DefaultAutoescape),
		AutoReload:          r.boolean(KeyAutoReload, explicit.AutoReload, DefaultAutoReload),
		ContextProcessors:   r.boolean(KeyContextProcessors, explicit.ContextProcessors, DefaultContextProcessors),
		Signals:             r.boolean(KeySignals, explicit.Signals, DefaultSignals),
		TemplateComments:    r.boolean(KeyTemplateComments, explicit.TemplateComments, DefaultTemplateComments),
		TagStart:            r.str(KeyTagStartString, explicit.TagStart, DefaultTagStartString, true),
		TagEnd:              r.str(KeyTagEndString, explicit.TagEnd, DefaultTagEndString, true),
		StatementStart:      r.str(KeyStatementStartString, explicit.StatementStart, DefaultStatementStartString, true),
		StatementEnd:        r.str(KeyStatementEndString, explicit.StatementEnd, DefaultStatementEndString, true),
		StrictVariables:     r.boolean(KeyStrictVariables, explicit.StrictVariables, DefaultStrictVariables),
		Filters:             maps.Clone(explicit.Filters),
		Tags:                maps.Clone(explicit.Tags),
		Globals:             maps.Clone(explicit.Globals),
	}

	// Comment markers only mean something when comments are on.
	commentStart := r.str(KeyCommentStartString, explicit.CommentStart, DefaultCommentStartString, opts.TemplateComments)
	commentEnd := r.str(KeyCommentEndString, explicit.CommentEnd, DefaultCommentEndString, opts.TemplateComments)
	if opts.TemplateComments {
		opts.CommentStart, opts.CommentEnd = commentStart, commentEnd
	}

	if len(r.errs) > 0 {
		return Options{}, errors.Join(r.errs...)
	}
	return opts, nil
}

type resolver struct {
	store *viper.Viper
	errs  []error
}

func (r *resolver) lookup(key string) (any, bool) {
	if r.store == nil || !r.store.IsSet(key) {
		return nil, false
	}
	return r.store.Get(key), true
}

func (r *resolver) fail(key string, value any, reason string) {
	r.errs = append(r.errs, &ConfigurationError{Key: key, Value: value, Reason: reason})
}

func (r *resolver) str(key string, explicit *string, def string, required bool) string {
	value := def
	if raw, ok := r.lookup(key); ok {
		s, isString := raw.(string)
		if !isString {
			r.fail(key, raw, "expected a string")
			return def
		}
		value = s
	} else if explicit != nil {
		value = *explicit
	}

	if required && value == "" {
		r.fail(key, value, "must not be empty")
		return def
	}
	return value
}

func (r *resolver) boolean(key string, explicit *bool, def bool) bool {
	if raw, ok := r.lookup(key); ok {
		b, isBool := raw.(bool)
		if !isBool {
			r.fail(key, raw, "expected a boolean")
			return def
		}
		return b
	}
	if explicit != nil {
		return *explicit
	}
	return def
}

// capacity resolves a cache size. Zero is valid and disables the cache.
func (r *resolver) capacity(key string, explicit *int, def int) int {
	if raw, ok := r.lookup(key); ok {
		n, isInt := toInt(raw)
		if !isInt {
			r.fail(key, raw, "expected a non-negative integer")
			return def
		}
		if n < 0 {
			r.fail(key, raw, "must not be negative")
			return def
		}
		return n
	}
	if explicit != nil {
		if *explicit < 0 {
			r.fail(key, *explicit, "must not be negative")
			return def
		}
		return *explicit
	}
	return def
}

// toInt accepts Go integer kinds and integral floats, which is what YAML,
// TOML and JSON decoders produce. Strings are rejected.
func toInt(v any) (int, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt {
			return 0, false
		}
		return int(u), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f > math.MaxInt || f < math.MinInt {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}
