package security

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/real-time-ressys/services/reset-service/internal/domain"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy source closed") }

func TestCodeGenerator_FixedLengthAndAlphabet(t *testing.T) {
	g := NewCodeGenerator(0)

	for i := 0; i < 200; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		require.Len(t, code, DefaultCodeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(CodeAlphabet, r), "unexpected symbol %q in %q", r, code)
		}
	}
}

func TestCodeGenerator_CustomLength(t *testing.T) {
	code, err := NewCodeGenerator(12).Generate()
	require.NoError(t, err)
	assert.Len(t, code, 12)
}

func TestCodeGenerator_IndependentDraws(t *testing.T) {
	g := NewCodeGenerator(DefaultCodeLength)
	seen := make(map[string]struct{}, 5000)

	for i := 0; i < 5000; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		_, dup := seen[code]
		require.False(t, dup, "collision after %d draws: %s", i, code)
		seen[code] = struct{}{}
	}
}

func TestCodeGenerator_RandomFailure(t *testing.T) {
	g := NewCodeGenerator(6)
	g.rand = failingReader{}

	_, err := g.Generate()
	require.Error(t, err)
	assert.True(t, domain.Is(err, "random_failed"))
}
