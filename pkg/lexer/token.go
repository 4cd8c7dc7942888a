package lexer

// Kind identifies the lexical category of a Token.
type Kind int

const (
	EOF Kind = iota
	Illegal

	Identifier
	Integer
	Float
	Rune
	RawString
	// StringFragment is a piece of an interpolated "..." literal that is
	// followed by a "{expr}" element; StringFragmentFinal is the piece
	// that reaches the closing quote (spec.md §4.1). A plain string with
	// no interpolation lexes as a single StringFragmentFinal.
	StringFragment
	StringFragmentFinal
	FormatSpecifier

	// Keywords, spec.md §6.
	As
	Assert
	Break
	Class
	Continue
	Def
	Echo
	Else
	Enum
	Extends
	False
	For
	If
	Import
	In
	Let
	Loop
	Null
	Pri
	Pub
	Return
	Self
	Static
	Super
	True
	Try
	Typedef
	Var
	With
	While

	// Punctuation.
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Comma
	Dot
	Colon
	ColonColon
	Semi
	Question
	Bang
	QuestionQuestion
	BangBang
	AndAnd
	OrOr
	Plus
	Minus
	Star
	StarStar
	Slash
	SlashSlash
	Percent
	Amp
	Pipe
	Caret
	Tilde
	Shl
	Shr
	Lt
	Le
	Gt
	Ge
	EqEq
	NotEq
	Assign
	PlusEq
	MinusEq
)

var keywords = map[string]Kind{
	"as": As, "assert": Assert, "break": Break, "class": Class,
	"continue": Continue, "def": Def, "echo": Echo, "else": Else,
	"enum": Enum, "extends": Extends, "false": False, "for": For,
	"if": If, "import": Import, "in": In, "let": Let, "loop": Loop,
	"null": Null, "pri": Pri, "pub": Pub, "return": Return, "self": Self,
	"static": Static, "super": Super, "true": True, "try": Try,
	"typedef": Typedef, "var": Var, "with": With, "while": While,
}

var kindNames = map[Kind]string{
	EOF: "EOF", Illegal: "ILLEGAL", Identifier: "IDENTIFIER",
	Integer: "INTEGER", Float: "FLOAT", Rune: "RUNE", RawString: "RAW_STRING",
	StringFragment: "STRING_FRAGMENT", StringFragmentFinal: "STRING_FRAGMENT_FINAL",
	FormatSpecifier: "FORMAT_SPECIFIER",
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}",
	LBracket: "[", RBracket: "]", Comma: ",", Dot: ".", Colon: ":",
	ColonColon: "::", Semi: ";", Question: "?", Bang: "!",
	QuestionQuestion: "??", BangBang: "!!", AndAnd: "&&", OrOr: "||",
	Plus: "+", Minus: "-", Star: "*", StarStar: "**", Slash: "/",
	SlashSlash: "//", Percent: "%", Amp: "&", Pipe: "|", Caret: "^",
	Tilde: "~", Shl: "<<", Shr: ">>", Lt: "<", Le: "<=", Gt: ">", Ge: ">=",
	EqEq: "==", NotEq: "!=", Assign: "=", PlusEq: "+=", MinusEq: "-=",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	for name, kw := range keywords {
		if kw == k {
			return name
		}
	}
	return "?"
}

// Token is one lexical unit: its Kind, the decoded text it carries
// (escapes already resolved for strings/runes), and the source line it
// started on.
type Token struct {
	Kind    Kind
	Literal string
	Line    int
}

func lookupIdent(ident string) Kind {
	if kw, ok := keywords[ident]; ok {
		return kw
	}
	return Identifier
}
