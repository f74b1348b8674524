package security

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"

	"github.com/baechuer/real-time-ressys/services/reset-service/internal/domain"
)

// CodeAlphabet omits 0/O and 1/I so codes survive being read aloud or retyped.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const DefaultCodeLength = 8

type CodeGenerator struct {
	alphabet string
	length   int
	rand     io.Reader
}

func NewCodeGenerator(length int) *CodeGenerator {
	if length <= 0 {
		length = DefaultCodeLength
	}
	return &CodeGenerator{
		alphabet: CodeAlphabet,
		length:   length,
		rand:     rand.Reader,
	}
}

// Generate draws each symbol uniformly with crypto/rand.Int (no modulo bias).
func (g *CodeGenerator) Generate() (string, error) {
	if len(g.alphabet) < 2 {
		return "", domain.ErrRandomFailed(errors.New("alphabet too small"))
	}
	size := big.NewInt(int64(len(g.alphabet)))
	out := make([]byte, g.length)
	for i := range out {
		n, err := rand.Int(g.rand, size)
		if err != nil {
			return "", domain.ErrRandomFailed(err)
		}
		out[i] = g.alphabet[n.Int64()]
	}
	return string(out), nil
}
