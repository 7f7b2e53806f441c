// Package config resolves liquidview settings from a viper settings store
// and explicit constructor arguments into an immutable Options record.
//
// For every setting the resolved value is the settings-store value when the
// store has the key, else the explicit argument when one was given, else the
// documented default.
package config

import (
	"github.com/osteele/liquid"
)

// Settings-store keys.
const (
	KeyTemplateFolder       = "LIQUID_TEMPLATE_FOLDER"
	KeyCacheSize            = "LIQUID_CACHE_SIZE"
	KeyExpressionCacheSize  = "LIQUID_EXPRESSION_CACHE_SIZE"
	KeyAutoescape           = "LIQUID_AUTOESCAPE"
	KeyAutoReload           = "LIQUID_AUTO_RELOAD"
	KeyContextProcessors    = "LIQUID_CONTEXT_PROCESSORS"
	KeySignals              = "LIQUID_SIGNALS"
	KeyTemplateComments     = "LIQUID_TEMPLATE_COMMENTS"
	KeyCommentStartString   = "LIQUID_COMMENT_START_STRING"
	KeyCommentEndString     = "LIQUID_COMMENT_END_STRING"
	KeyTagStartString       = "LIQUID_TAG_START_STRING"
	KeyTagEndString         = "LIQUID_TAG_END_STRING"
	KeyStatementStartString = "LIQUID_STATEMENT_START_STRING"
	KeyStatementEndString   = "LIQUID_STATEMENT_END_STRING"
	KeyStrictVariables      = "LIQUID_STRICT_VARIABLES"
)

// Defaults.
const (
	DefaultTemplateFolder       = "templates"
	DefaultCacheSize            = 300
	DefaultExpressionCacheSize  = 0
	DefaultAutoescape           = true
	DefaultAutoReload           = true
	DefaultContextProcessors    = false
	DefaultSignals              = true
	DefaultTemplateComments     = false
	DefaultCommentStartString   = "{#"
	DefaultCommentEndString     = "#}"
	DefaultTagStartString       = "{%"
	DefaultTagEndString         = "%}"
	DefaultStatementStartString = "{{"
	DefaultStatementEndString   = "}}"
	DefaultStrictVariables      = false
)

// Options is the resolved, immutable configuration used to build one
// template environment. Build it with Resolve; treat it as read-only.
type Options struct {
	TemplateFolder string

	// CacheSize is the template cache capacity. Zero disables caching.
	CacheSize int

	// ExpressionCacheSize caps the cache of templates compiled from strings.
	// Zero disables it.
	ExpressionCacheSize int

	Autoescape bool
	AutoReload bool

	ContextProcessors bool
	Signals           bool

	// TemplateComments enables {# ... #} style comments. When false,
	// CommentStart and CommentEnd are empty.
	TemplateComments bool
	CommentStart     string
	CommentEnd       string

	TagStart       string
	TagEnd         string
	StatementStart string
	StatementEnd   string

	StrictVariables bool

	Filters map[string]any
	Tags    map[string]liquid.Renderer
	Globals map[string]any
}

// Explicit holds constructor arguments. A nil field means "not given".
type Explicit struct {
	TemplateFolder      *string
	CacheSize           *int
	ExpressionCacheSize *int
	Autoescape          *bool
	AutoReload          *bool
	ContextProcessors   *bool
	Signals             *bool
	TemplateComments    *bool
	CommentStart        *string
	CommentEnd          *string
	TagStart            *string
	TagEnd              *string
	StatementStart      *string
	StatementEnd        *string
	StrictVariables     *bool

	// Filters, Tags and Globals have no settings-store keys.
	Filters map[string]any
	Tags    map[string]liquid.Renderer
	Globals map[string]any
}

// Defaults returns the Options used when neither the store nor explicit
// arguments set anything.
func Defaults() Options {
	return Options{
		TemplateFolder:      DefaultTemplateFolder,
		CacheSize:           DefaultCacheSize,
		ExpressionCacheSize: DefaultExpressionCacheSize,
		Autoescape:          DefaultAutoescape,
		AutoReload:          DefaultAutoReload,
		ContextProcessors:   DefaultContextProcessors,
		Signals:             DefaultSignals,
		TemplateComments:    DefaultTemplateComments,
		TagStart:            DefaultTagStartString,
		TagEnd:              DefaultTagEndString,
		StatementStart:      DefaultStatementStartString,
		StatementEnd:        DefaultStatementEndString,
		StrictVariables:     DefaultStrictVariables,
	}
}

// CachingEnabled reports whether named templates are cached.
func (o Options) CachingEnabled() bool { return o.CacheSize > 0 }

// Settings returns the resolved values keyed by settings-store key.
func (o Options) Settings() map[string]any {
	return map[string]any{
		KeyTemplateFolder:       o.TemplateFolder,
		KeyCacheSize:            o.CacheSize,
		KeyExpressionCacheSize:  o.ExpressionCacheSize,
		KeyAutoescape:           o.Autoescape,
		KeyAutoReload:           o.AutoReload,
		KeyContextProcessors:    o.ContextProcessors,
		KeySignals:              o.Signals,
		KeyTemplateComments:     o.TemplateComments,
		KeyCommentStartString:   o.CommentStart,
		KeyCommentEndString:     o.CommentEnd,
		KeyTagStartString:       o.TagStart,
		KeyTagEndString:         o.TagEnd,
		KeyStatementStartString: o.StatementStart,
		KeyStatementEndString:   o.StatementEnd,
		KeyStrictVariables:      o.StrictVariables,
	}
}

// Ptr returns a pointer to v. Handy for filling Explicit.
func Ptr[T any](v T) *T { return &v }
