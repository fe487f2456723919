package profile

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/participle/v2"
)

// Parser parses board profile files.
type Parser struct {
	parser *participle.Parser[File]
}

// NewParser creates a new profile parser instance
func NewParser() (*Parser, error) {
	parser, err := participle.Build[File](
		participle.Lexer(ProfileLexer),
		participle.Elide("Comment", "Whitespace"),
		participle.Unquote("String"),
		participle.UseLookahead(2),
	)
	if err != nil {
		return nil, fmt.Errorf("profile: failed to build parser: %w", err)
	}

	return &Parser{parser: parser}, nil
}

// Parse parses a profile file from a reader. name is used in error
// positions.
func (p *Parser) Parse(name string, r io.Reader) (*File, error) {
	f, err := p.parser.Parse(name, r)
	if err != nil {
		return nil, fmt.Errorf("profile: parse error: %w", err)
	}
	return f, nil
}

// ParseString parses a profile file from a string
func (p *Parser) ParseString(name, input string) (*File, error) {
	f, err := p.parser.ParseString(name, input)
	if err != nil {
		return nil, fmt.Errorf("profile: parse error: %w", err)
	}
	return f, nil
}

// ParseFile parses a profile file from a file path
func (p *Parser) ParseFile(filename string) (*File, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("profile: failed to open file: %w", err)
	}
	defer file.Close()

	return p.Parse(filename, file)
}
