package config

import (
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/MimeLyc/contextual-doc-translator/pkg/log"
)

// loader resolves keys through viper: bound flag, environment, config file.
// Config file and flag keys are the lower case environment names.
type loader struct {
	v *viper.Viper
}

func (l loader) lookup(key string) (string, bool) {
	k := strings.ToLower(key)
	if !l.v.IsSet(k) {
		return "", false
	}
	value := strings.TrimSpace(l.v.GetString(k))
	return value, value != ""
}

// getString gets a string value with default
func (l loader) getString(key, defaultValue string) string {
	if value, ok := l.lookup(key); ok {
		return value
	}
	return defaultValue
}

// getInt gets an integer value with default
func (l loader) getInt(key string, defaultValue int) int {
	if value, ok := l.lookup(key); ok {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn("Ignoring invalid integer %s=%q", key, value)
	}
	return defaultValue
}

// getFloat gets a float value with default
func (l loader) getFloat(key string, defaultValue float64) float64 {
	if value, ok := l.lookup(key); ok {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		log.Warn("Ignoring invalid number %s=%q", key, value)
	}
	return defaultValue
}

func (l loader) getBool(key string, defaultValue bool) bool {
	if value, ok := l.lookup(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Warn("Ignoring invalid boolean %s=%q", key, value)
	}
	return defaultValue
}

// getList splits a comma separated value.
func (l loader) getList(key string, defaultValue []string) []string {
	value, ok := l.lookup(key)
	if !ok {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func (l loader) getLanguage(key string, defaultValue language.Tag) language.Tag {
	if value, ok := l.lookup(key); ok {
		if tag, err := language.Parse(value); err == nil {
			return tag
		}
		log.Warn("Ignoring invalid language %s=%q", key, value)
	}
	return defaultValue
}
