package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantedge/derivengine/pkg/types"
)

const validJSON = `{
	"apiToken": "tok-1",
	"appId": "1089",
	"symbols": ["R_100"],
	"activeStrategy": "strategy_3",
	"contractType": "rise_fall",
	"entryType": "tick",
	"balanceValue": 2,
	"maxDailyLossPct": 10,
	"maxDailyProfitPct": 20,
	"binaryFailsafePct": 0.01
}`

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewLoadsValidConfig(t *testing.T) {
	path := writeTempConfig(t, validJSON)
	l, err := New(zap.NewNop(), path)
	require.NoError(t, err)

	cfg := l.Current()
	assert.Equal(t, "tok-1", cfg.APIToken)
	assert.Equal(t, []string{"R_100"}, cfg.Symbols)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	path := writeTempConfig(t, `{"symbols": ["R_100"]}`)
	_, err := New(zap.NewNop(), path)
	assert.Error(t, err)
}

func TestEnvOverridesCredentials(t *testing.T) {
	t.Setenv("DERIV_API_TOKEN", "env-token")
	path := writeTempConfig(t, validJSON)
	l, err := New(zap.NewNop(), path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", l.Current().APIToken)
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	l, err := New(zap.NewNop(), writeTempConfig(t, validJSON))
	require.NoError(t, err)
	cfg := l.Current()
	cfg.ActiveStrategy = "strategy_99"
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsZeroMultiplierValue(t *testing.T) {
	l, err := New(zap.NewNop(), writeTempConfig(t, validJSON))
	require.NoError(t, err)
	cfg := l.Current()
	cfg.ContractType = "multiplier"
	assert.Error(t, Validate(cfg))
}

func TestHandleFileChangeDeliversReloadedConfig(t *testing.T) {
	path := writeTempConfig(t, validJSON)
	l, err := New(zap.NewNop(), path)
	require.NoError(t, err)

	var got string
	l.OnChange(func(cfg types.Configuration) { got = cfg.AppID })

	require.NoError(t, os.WriteFile(path, []byte(`{
		"apiToken": "tok-1", "appId": "9999", "symbols": ["R_100"],
		"activeStrategy": "strategy_3", "contractType": "rise_fall", "entryType": "tick",
		"balanceValue": 2, "maxDailyLossPct": 10, "maxDailyProfitPct": 20, "binaryFailsafePct": 0.01
	}`), 0o600))
	require.NoError(t, l.v.ReadInConfig())
	l.handleFileChange(fsnotify.Event{Name: path, Op: fsnotify.Write})

	assert.Equal(t, "9999", got)
	assert.Equal(t, "9999", l.Current().AppID)
}

func TestHandleFileChangeKeepsPreviousOnInvalidReload(t *testing.T) {
	path := writeTempConfig(t, validJSON)
	l, err := New(zap.NewNop(), path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"symbols": ["R_100"]}`), 0o600))
	require.NoError(t, l.v.ReadInConfig())
	l.handleFileChange(fsnotify.Event{Name: path, Op: fsnotify.Write})

	assert.Equal(t, "tok-1", l.Current().APIToken)
}
