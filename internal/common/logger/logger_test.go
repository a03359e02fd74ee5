// Package logger 日志模块单元测试
package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/dumeirei/affiliate-backend/internal/common/config"
)

func TestInit_Stdout(t *testing.T) {
	err := Init(&config.LoggerConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	})
	require.NoError(t, err)
	assert.NotNil(t, GetLogger())
	assert.NotNil(t, GetSugar())
}

func TestInit_ConsoleFormat(t *testing.T) {
	err := Init(&config.LoggerConfig{
		Level:  "debug",
		Format: "console",
		Output: "stdout",
	})
	require.NoError(t, err)

	// 各级别不应 panic
	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")
	Debugf("debug %s", "fmt")
	Infof("info %s", "fmt")
	Warnf("warn %s", "fmt")
	Errorf("error %s", "fmt")
}

func TestInit_FileOutput(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")

	err := Init(&config.LoggerConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logPath,
		MaxSize:  1,
		MaxAge:   1,
	})
	require.NoError(t, err)

	Info("written to file", String("key", "value"))
	require.NoError(t, Sync())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"unknown", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, getLogLevel(tt.in), tt.in)
	}
}

func TestGetLogger_LazyInit(t *testing.T) {
	log = nil
	sugar = nil

	assert.NotNil(t, GetLogger())
	assert.NotNil(t, GetSugar())
}

func TestDomainFields(t *testing.T) {
	f := AffiliateID(42)
	assert.Equal(t, "affiliate_id", f.Key)
	assert.Equal(t, int64(42), f.Integer)

	f = ReferralID(7)
	assert.Equal(t, "referral_id", f.Key)

	f = WithdrawalNo("W20250615000001")
	assert.Equal(t, "withdrawal_no", f.Key)
	assert.Equal(t, "W20250615000001", f.String)

	f = Code("ACME10")
	assert.Equal(t, "code", f.Key)

	f = OrderNo("ORD-1001")
	assert.Equal(t, "order_no", f.Key)

	f = UserID(1)
	assert.Equal(t, "user_id", f.Key)

	f = AdminID(2)
	assert.Equal(t, "admin_id", f.Key)

	f = RequestID("req-1")
	assert.Equal(t, "request_id", f.Key)

	f = Amount(99.5)
	assert.Equal(t, "amount", f.Key)

	f = Module("attribution")
	assert.Equal(t, "module", f.Key)

	f = StatusCode(200)
	assert.Equal(t, "status_code", f.Key)
}

func TestWithAndNamed(t *testing.T) {
	require.NoError(t, Init(&config.LoggerConfig{Level: "info", Format: "json", Output: "stdout"}))

	l := With(String("component", "test"))
	assert.NotNil(t, l)

	n := Named("leaderboard")
	assert.NotNil(t, n)
}
