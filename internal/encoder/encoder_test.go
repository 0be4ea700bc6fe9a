package encoder

import (
	"encoding/base64"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var payloadRe = regexp.MustCompile(`_BC = "([A-Za-z0-9+/=]*)"`)

func embeddedPayload(t *testing.T, wrapped string) string {
	t.Helper()
	m := payloadRe.FindStringSubmatch(wrapped)
	require.Len(t, m, 2, "wrapper must embed a base64 payload")
	raw, err := base64.StdEncoding.DecodeString(m[1])
	require.NoError(t, err)
	return string(raw)
}

func TestLuaLoaderEmbedsContent(t *testing.T) {
	content := `print("Hello from Shinra OS!")`
	out := NewLuaLoader().Encode(content)

	assert.Contains(t, out, DefaultWatermark)
	assert.Contains(t, out, "loadstring")
	assert.NotContains(t, out, content, "raw content must not appear in the wrapper")
	assert.Equal(t, content, embeddedPayload(t, out))
}

func TestObfuscatorAddsEnvironmentCheck(t *testing.T) {
	content := `warn("Loaded successfully.")`
	out := NewObfuscator().Encode(content)

	assert.Contains(t, out, "pcall")
	assert.Contains(t, out, "environment violation")
	assert.NotContains(t, out, content)
	assert.Equal(t, content, embeddedPayload(t, out))
}

func TestAlreadyEncoded(t *testing.T) {
	assert.True(t, AlreadyEncoded(NewLuaLoader().Encode("x = 1")))
	assert.True(t, AlreadyEncoded(NewObfuscator().Encode("x = 1")))
	assert.False(t, AlreadyEncoded(`print("plain script")`))
}

func TestEncodeIsDeterministic(t *testing.T) {
	e := NewLuaLoader()
	assert.Equal(t, e.Encode("x = 1"), e.Encode("x = 1"))
}
