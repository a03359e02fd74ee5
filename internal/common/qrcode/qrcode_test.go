package qrcode

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerator_Options(t *testing.T) {
	gen := NewGenerator()
	assert.Equal(t, 256, gen.size)
	assert.Equal(t, Medium, gen.recoveryLevel)

	gen = NewGenerator(WithSize(512), WithRecoveryLevel(High))
	assert.Equal(t, 512, gen.size)
	assert.Equal(t, High, gen.recoveryLevel)
}

func TestGenerator_GeneratePNG(t *testing.T) {
	gen := NewGenerator()

	// 邀请链接是主要的编码内容
	data, err := gen.GeneratePNG("https://app.example.com/t/ACME10")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	bounds := img.Bounds()
	assert.Equal(t, bounds.Dx(), bounds.Dy())
}

func TestGenerator_GenerateDataURL(t *testing.T) {
	gen := NewGenerator()

	dataURL, err := gen.GenerateDataURL("https://app.example.com/t/ACME10")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(dataURL, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, "data:image/png;base64,"))
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
}

func TestGenerator_WriteToFile(t *testing.T) {
	gen := NewGenerator()
	// 嵌套目录自动创建
	path := filepath.Join(t.TempDir(), "qr", "invite.png")

	require.NoError(t, gen.WriteToFile("https://app.example.com/t/ACME10", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
}

func TestGenerator_EmptyContent(t *testing.T) {
	gen := NewGenerator()

	// 底层库拒绝空内容
	_, err := gen.Generate("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data to encode")
}

func TestGenerator_DeterministicPerContent(t *testing.T) {
	gen := NewGenerator()

	a1, err := gen.GeneratePNG("https://app.example.com/t/AAAA0001")
	require.NoError(t, err)
	a2, err := gen.GeneratePNG("https://app.example.com/t/AAAA0001")
	require.NoError(t, err)
	b1, err := gen.GeneratePNG("https://app.example.com/t/BBBB0002")
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b1)
}

func BenchmarkGeneratePNG(b *testing.B) {
	gen := NewGenerator()
	for i := 0; i < b.N; i++ {
		_, _ = gen.GeneratePNG("https://app.example.com/t/ACME10")
	}
}
