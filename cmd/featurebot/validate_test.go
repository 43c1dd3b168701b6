package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable the config overlay reads
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TELEGRAM_BOT_TOKEN",
		"DISCORD_BOT_TOKEN",
		"FEATUREBOT_TRANSPORT",
		"FEATUREBOT_LOG_LEVEL",
		"FEATUREBOT_LOG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestValidateFile_EnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123456:ABCDEF")

	result, cfg := validateFile("")
	require.NotNil(t, cfg)
	assert.True(t, result.Valid)
	assert.Equal(t, "(environment)", result.Config)
	assert.Equal(t, "telegram", result.Transport)
	assert.Equal(t, []string{"/calc", "/help", "/info", "/joke", "/start", "/time", "/weather"}, result.Commands)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateFile_MissingToken(t *testing.T) {
	clearEnv(t)

	result, cfg := validateFile("")
	assert.Nil(t, cfg)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "TELEGRAM_BOT_TOKEN")
}

func TestValidateFile_Warnings(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
transport: discord
command_prefix: "!"
telegram:
  token: "123456:ABCDEF"
  debug: true
discord:
  token: "discord-token"
dispatch:
  timeout: 5m
logging:
  enable_stdout: false
`)

	result, cfg := validateFile(path)
	require.NotNil(t, cfg)
	assert.True(t, result.Valid)
	assert.Equal(t, path, result.Config)
	assert.Contains(t, result.Commands, "!calc")
	assert.Len(t, result.Warnings, 3)
	assert.Contains(t, result.Warnings[0], "transport is discord")
}

func TestOutputValidationResult(t *testing.T) {
	result := ValidationResult{
		Valid:     true,
		Config:    "config.yaml",
		Transport: "telegram",
		Commands:  []string{"/help"},
		Warnings:  []string{"something odd"},
	}

	var text bytes.Buffer
	outputValidationResult(&text, result, false)
	assert.Contains(t, text.String(), "✓ Configuration is valid")
	assert.Contains(t, text.String(), "something odd")

	var raw bytes.Buffer
	outputValidationResult(&raw, result, true)
	var decoded ValidationResult
	require.NoError(t, json.Unmarshal(raw.Bytes(), &decoded))
	assert.Equal(t, result, decoded)

	var failed bytes.Buffer
	outputValidationResult(&failed, ValidationResult{Config: "x", Errors: []string{"bad token"}}, false)
	assert.Contains(t, failed.String(), "❌ Configuration validation failed:")
	assert.Contains(t, failed.String(), "bad token")
}
