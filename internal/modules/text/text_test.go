package text

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDefaultsTo42(t *testing.T) {
	m := New()

	out, err := m.generate(context.Background(), &GenerateParams{})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"msg": "You're not that awesome: 42 awesomeness"}, out)
}

func TestGenerateThreshold(t *testing.T) {
	m := New()
	v := 61

	out, err := m.generate(context.Background(), &GenerateParams{Awesomeness: &v})
	require.NoError(t, err)
	assert.Equal(t, "You're super awesome: 61 awesomeness", out.(map[string]string)["msg"])
}

func TestReverseHandlesMultibyte(t *testing.T) {
	m := New()

	out, err := m.reverse(context.Background(), &ReverseParams{Text: "héllo"})
	require.NoError(t, err)
	assert.Equal(t, "olléh", out.(map[string]string)["text"])
}

func TestEndpointNamesAreUnique(t *testing.T) {
	m := New()
	seen := map[string]bool{}
	for _, ep := range m.Endpoints() {
		assert.False(t, seen[ep.Name], "duplicate endpoint %s", ep.Name)
		seen[ep.Name] = true
	}
}
