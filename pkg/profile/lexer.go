package profile

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// ProfileLexer tokenises board profile files. Rule order matters: durations,
// percentages and sizes must win over plain integers.
var ProfileLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `\s+`},

	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},

	// Numbers
	{Name: "Hex", Pattern: `0[xX][0-9A-Fa-f]+`},
	{Name: "Duration", Pattern: `[0-9]+(?:\.[0-9]+)?(?:ns|us|µs|ms|s|m|h)\b`},
	{Name: "Percent", Pattern: `[0-9]+(?:\.[0-9]+)?%`},
	{Name: "Size", Pattern: `[0-9]+[Kk]\b`},
	{Name: "Float", Pattern: `[0-9]+\.[0-9]+`},
	{Name: "Int", Pattern: `[0-9]+`},

	// Identifiers: keywords, timing keys and chip designators
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_\-]*`},

	{Name: "Punct", Pattern: `[{}\[\]]`},
})
