package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// stringKeys are the settings that may be overridden from the environment.
// Environment values are always strings, so typed settings must come from a
// config file.
var stringKeys = []string{
	KeyTemplateFolder,
	KeyCommentStartString,
	KeyCommentEndString,
	KeyTagStartString,
	KeyTagEndString,
	KeyStatementStartString,
	KeyStatementEndString,
}

// Load creates a settings store for the given app name.
// Each file is merged in order (YAML, JSON or TOML, by extension); later files
// win. String settings can be overridden with {APPNAME}_{KEY} environment
// variables, e.g. BLOG_LIQUID_TEMPLATE_FOLDER.
func Load(appName string, files ...string) (*viper.Viper, error) {
	v := viper.New()

	appName = strings.ToLower(strings.TrimSpace(appName))
	if appName == "" {
		appName = "app"
	}
	prefix := strings.ToUpper(appName)

	for _, file := range files {
		if file == "" {
			continue
		}
		v.SetConfigFile(file)
		v.SetConfigType(strings.TrimPrefix(filepath.Ext(file), "."))
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	for _, key := range stringKeys {
		if err := v.BindEnv(key, prefix+"_"+key); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	return v, nil
}
