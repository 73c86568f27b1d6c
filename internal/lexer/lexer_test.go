package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeInstructionLine(t *testing.T) {
	l := New("addi x1, x2, -4 # comment\n", "t.s")
	toks := l.Tokenize()

	var types []TokenType
	for _, tk := range toks {
		types = append(types, tk.Type)
	}
	require.Equal(t, []TokenType{
		TokenIdentifier, TokenRegister, TokenComma, TokenRegister, TokenComma,
		TokenMinus, TokenNumber, TokenComment, TokenNewline, TokenEOF,
	}, types)
}

func TestTokenizeDirectiveAndLabel(t *testing.T) {
	l := New("loop: .word 42\n", "t.s")
	toks := l.Tokenize()
	require.Equal(t, TokenIdentifier, toks[0].Type)
	require.Equal(t, "loop", toks[0].Literal)
	require.Equal(t, TokenColon, toks[1].Type)
	require.Equal(t, TokenDirective, toks[2].Type)
	require.Equal(t, ".word", toks[2].Literal)
}

func TestTokenizeHexAndBinaryLiterals(t *testing.T) {
	l := New("0xFF 0b1010", "t.s")
	toks := l.Tokenize()
	require.Equal(t, "0xFF", toks[0].Literal)
	require.Equal(t, "0b1010", toks[1].Literal)
}

func TestTokenizeStringLiteral(t *testing.T) {
	l := New(`"hello\n"`, "t.s")
	toks := l.Tokenize()
	require.Equal(t, TokenString, toks[0].Type)
	require.Equal(t, `hello\n`, toks[0].Literal)
}

func TestUnterminatedStringRecordsError(t *testing.T) {
	l := New(`"oops`, "t.s")
	l.Tokenize()
	require.NotEmpty(t, l.Errors)
}

func TestComparisonOperatorsTokenizeLongestMatch(t *testing.T) {
	l := New("<< >> <= >= == != && ||", "t.s")
	toks := l.Tokenize()
	var types []TokenType
	for _, tk := range toks {
		if tk.Type != TokenEOF {
			types = append(types, tk.Type)
		}
	}
	require.Equal(t, []TokenType{
		TokenLShift, TokenRShift, TokenLessEqual, TokenGreaterEqual,
		TokenEqualEqual, TokenBangEqual, TokenAmpAmp, TokenPipePipe,
	}, types)
}

func TestGetSyntaxRegexReturnsNonEmptyForKnownKinds(t *testing.T) {
	require.NotEmpty(t, GetSyntaxRegex(TokenRegister))
	require.NotEmpty(t, GetSyntaxRegex(TokenDirective))
	require.Empty(t, GetSyntaxRegex(TokenEOF))
}
