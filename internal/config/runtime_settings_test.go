package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
)

func validSettings() RuntimeSettings {
	return RuntimeSettings{
		Provider:       "gemini",
		Model:          "gemini-2.0-flash",
		Prompt:         "Keep the tone.",
		TargetLanguage: "fr",
		RateLimit:      1,
		AutosaveCron:   "@every 30s",
	}
}

func TestRuntimeSettings_Validate(t *testing.T) {
	require.NoError(t, validSettings().Validate())

	invalid := validSettings()
	invalid.AutoBatchCron = "bad cron"
	assert.True(t, errs.IsErrorType(invalid.Validate(), errs.ErrConfig))

	invalidLang := validSettings()
	invalidLang.TargetLanguage = ""
	require.Error(t, invalidLang.Validate())

	noProvider := validSettings()
	noProvider.Provider = " "
	require.Error(t, noProvider.Validate())

	negative := validSettings()
	negative.RateLimit = -2
	require.Error(t, negative.Validate())
}

func TestRuntimeSettingsFile_RoundTrip(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "settings", "runtime.json")
	input := validSettings()
	input.APIKey = "secret"

	require.NoError(t, WriteRuntimeSettingsFile(filePath, input))

	got, err := LoadRuntimeSettingsFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, input, got)

	info, err := os.Stat(filePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRuntimeSettingsFile_Invalid(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(filePath, []byte("{not json"), 0o600))

	_, err := LoadRuntimeSettingsFile(filePath)
	assert.True(t, errs.IsErrorType(err, errs.ErrConfig))
}

func TestWithRuntimeSettings_OverridesConfig(t *testing.T) {
	t.Setenv("PROVIDER", "openai")
	t.Setenv("MODEL", "env-model")
	t.Setenv("AUTOSAVE_CRON", "@every 1m")

	override := RuntimeSettings{
		Provider:       "Qwen",
		Model:          "qwen-plus",
		APIKey:         "file-key",
		TargetLanguage: "ja",
		RateLimit:      3,
		AutosaveCron:   "*/5 * * * *",
	}

	cfg, err := NewFromEnv(WithRuntimeSettings(override))
	require.NoError(t, err)
	assert.Equal(t, "qwen", cfg.Translate.Provider)
	assert.Equal(t, "qwen-plus", cfg.Translate.Model)
	assert.Equal(t, "file-key", cfg.APIKey("qwen"))
	assert.Equal(t, language.Japanese, cfg.Translate.TargetLanguage)
	assert.Equal(t, 3.0, cfg.Translate.RateLimit)
	assert.Equal(t, "*/5 * * * *", cfg.Schedule.AutosaveCron)
}

func TestRuntimeSettingsStore_Update(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "settings.json")
	initial := validSettings()
	initial.APIKey = "secret"

	store, err := NewRuntimeSettingsStore(filePath, initial)
	require.NoError(t, err)

	var seen []RuntimeSettings
	store.OnChange(func(s RuntimeSettings) { seen = append(seen, s) })

	next := initial.Redacted()
	next.RateLimit = 5
	got, err := store.UpdateRuntimeSettings(next)
	require.NoError(t, err)
	assert.Equal(t, "secret", got.APIKey, "redacted key keeps the stored one")
	assert.Equal(t, 5.0, store.GetRuntimeSettings().RateLimit)
	require.Len(t, seen, 1)

	onDisk, err := LoadRuntimeSettingsFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, 5.0, onDisk.RateLimit)

	bad := next
	bad.TargetLanguage = ""
	_, err = store.UpdateRuntimeSettings(bad)
	require.Error(t, err)
	assert.Equal(t, 5.0, store.GetRuntimeSettings().RateLimit)
	assert.Len(t, seen, 1)

	_, err = NewRuntimeSettingsStore("", initial)
	require.Error(t, err)
}

func TestRuntimeSettings_Redacted(t *testing.T) {
	s := validSettings()
	assert.Equal(t, "", s.Redacted().APIKey)
	s.APIKey = "secret"
	assert.Equal(t, "********", s.Redacted().APIKey)
	assert.Equal(t, "secret", s.APIKey)
}
