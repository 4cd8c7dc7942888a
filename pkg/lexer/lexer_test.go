package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func allTokens(t *testing.T, src string) []Token {
	t.Helper()
	l := New(src)
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks
		}
	}
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks := allTokens(t, "var pub_total = self;")
	require.Equal(t, []Kind{Var, Identifier, Assign, Self, Semi, EOF}, kinds(toks))
}

func TestIntegerPrefixesAndSeparators(t *testing.T) {
	toks := allTokens(t, "0xFF 0o17 0b1010 1_000_000")
	require.Equal(t, []Kind{Integer, Integer, Integer, Integer, EOF}, kinds(toks))
	require.Equal(t, "0xFF", toks[0].Literal)
	require.Equal(t, "1000000", toks[3].Literal)
}

func TestFloatLiteral(t *testing.T) {
	toks := allTokens(t, "3.14 2.5e10 1e-3")
	require.Equal(t, []Kind{Float, Float, Float, EOF}, kinds(toks))
}

func TestTwoCharOperators(t *testing.T) {
	toks := allTokens(t, "a ?? b !! c == d != e <= f >= g :: h")
	kindsGot := kinds(toks)
	require.Contains(t, kindsGot, QuestionQuestion)
	require.Contains(t, kindsGot, BangBang)
	require.Contains(t, kindsGot, EqEq)
	require.Contains(t, kindsGot, NotEq)
	require.Contains(t, kindsGot, Le)
	require.Contains(t, kindsGot, Ge)
	require.Contains(t, kindsGot, ColonColon)
}

func TestCommentsAreSkipped(t *testing.T) {
	toks := allTokens(t, "var x = 1; # this is a comment\nvar y = 2;")
	require.Equal(t, []Kind{Var, Identifier, Assign, Integer, Semi, Var, Identifier, Assign, Integer, Semi, EOF}, kinds(toks))
}

func TestRawStringHasNoEscapes(t *testing.T) {
	toks := allTokens(t, `'hello\nworld'`)
	require.Equal(t, Kind(RawString), toks[0].Kind)
	require.Equal(t, `hello\nworld`, toks[0].Literal)
}

func TestEscapedStringPlainNoInterpolation(t *testing.T) {
	toks := allTokens(t, `"hello\nworld"`)
	require.Equal(t, Kind(StringFragmentFinal), toks[0].Kind)
	require.Equal(t, "hello\nworld", toks[0].Literal)
}

func TestUnicodeEscape(t *testing.T) {
	toks := allTokens(t, `"A\U0001F600"`)
	require.Equal(t, Kind(StringFragmentFinal), toks[0].Kind)
	require.Equal(t, "A\U0001F600", toks[0].Literal)
}

func TestUnrecognizedEscapePreservedVerbatim(t *testing.T) {
	toks := allTokens(t, `"\q"`)
	require.Equal(t, `\q`, toks[0].Literal)
}

func TestStringInterpolationFragmentsAndExpression(t *testing.T) {
	toks := allTokens(t, `"sum: {a + b}!"`)
	require.Equal(t, Kind(StringFragment), toks[0].Kind)
	require.Equal(t, "sum: ", toks[0].Literal)
	require.Equal(t, Identifier, toks[1].Kind)
	require.Equal(t, "a", toks[1].Literal)
	require.Equal(t, Plus, toks[2].Kind)
	require.Equal(t, Identifier, toks[3].Kind)
	require.Equal(t, "b", toks[3].Literal)
	require.Equal(t, Kind(StringFragmentFinal), toks[4].Kind)
	require.Equal(t, "!", toks[4].Literal)
	require.Equal(t, EOF, toks[5].Kind)
}

func TestStringInterpolationWithFormatSpecifier(t *testing.T) {
	toks := allTokens(t, `"{x;04d} done"`)
	require.Equal(t, Kind(StringFragment), toks[0].Kind)
	require.Equal(t, "", toks[0].Literal)
	require.Equal(t, Identifier, toks[1].Kind)
	require.Equal(t, Kind(FormatSpecifier), toks[2].Kind)
	require.Equal(t, "04d", toks[2].Literal)
	require.Equal(t, Kind(StringFragmentFinal), toks[3].Kind)
	require.Equal(t, " done", toks[3].Literal)
}

func TestStringInterpolationWithIndexExpression(t *testing.T) {
	toks := allTokens(t, `"map: {m[k]}"`)
	kindsGot := kinds(toks)
	require.Contains(t, kindsGot, LBracket)
	require.Equal(t, Kind(StringFragmentFinal), toks[len(toks)-2].Kind)
}

func TestRuneLiteral(t *testing.T) {
	toks := allTokens(t, "`a` `\\n`")
	require.Equal(t, Kind(Rune), toks[0].Kind)
	require.Equal(t, "a", toks[0].Literal)
	require.Equal(t, Kind(Rune), toks[1].Kind)
	require.Equal(t, "\n", toks[1].Literal)
}

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}
