package expr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func noResolve(string) (int64, bool) { return 0, false }

func TestPrecedenceArithmeticBeforeShift(t *testing.T) {
	prog, err := Compile("1 << 2 + 1")
	require.NoError(t, err)
	v, err := Eval(prog, noResolve, 64, true)
	require.NoError(t, err)
	require.EqualValues(t, 1<<3, v)
}

func TestUnaryAndParens(t *testing.T) {
	prog, err := Compile("-(3 + 4) * 2")
	require.NoError(t, err)
	v, err := Eval(prog, noResolve, 64, true)
	require.NoError(t, err)
	require.EqualValues(t, -14, v)
}

func TestLogicalOperators(t *testing.T) {
	prog, err := Compile("1 == 1 && 2 != 3")
	require.NoError(t, err)
	v, err := Eval(prog, noResolve, 64, true)
	require.NoError(t, err)
	require.EqualValues(t, 1, v)
}

func TestDivisionByZero(t *testing.T) {
	prog, err := Compile("1 / 0")
	require.NoError(t, err)
	_, err = Eval(prog, noResolve, 64, true)
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestUnresolvedIdentifier(t *testing.T) {
	prog, err := Compile("loop_start + 4")
	require.NoError(t, err)
	_, err = Eval(prog, noResolve, 64, true)
	var target *ErrUnrecognizedConstant
	require.ErrorAs(t, err, &target)
	require.Equal(t, "loop_start", target.Name)
}

func TestCharLiteralEscapes(t *testing.T) {
	cases := map[string]int64{
		`'a'`:    'a',
		`'\n'`:   '\n',
		`'\t'`:   '\t',
		`'\x41'`: 0x41,
	}
	for src, want := range cases {
		prog, err := Compile(src)
		require.NoError(t, err)
		v, err := Eval(prog, noResolve, 64, true)
		require.NoError(t, err)
		require.Equalf(t, want, v, "source %q", src)
	}
}

func TestResolveIdentifierFromCallback(t *testing.T) {
	resolve := func(name string) (int64, bool) {
		if name == "BASE" {
			return 0x1000, true
		}
		return 0, false
	}
	prog, err := Compile("BASE + 0x10")
	require.NoError(t, err)
	v, err := Eval(prog, resolve, 64, true)
	require.NoError(t, err)
	require.EqualValues(t, 0x1010, v)
}

func TestTruncationToNarrowSignedWidth(t *testing.T) {
	prog, err := Compile("0xFF")
	require.NoError(t, err)
	v, err := Eval(prog, noResolve, 8, true)
	require.NoError(t, err)
	require.EqualValues(t, -1, v)
}
