package profile

import "github.com/alecthomas/participle/v2/lexer"

// File is a parsed profile file. One file may describe several boards.
//
//	board "trs80-model1" {
//	  description "TRS-80 Model I, 16K"
//	  timing { settle 5ms crosstalk-threshold 80% }
//	  region "DRAM" { start 0x4000 length 16K chips [Z17 Z16 Z18 Z19 Z15 Z20 Z14 Z13] }
//	}
type File struct {
	Boards []*Board `@@*`
}

// Board is one board declaration.
type Board struct {
	Pos   lexer.Position
	Name  string       `"board" @String "{"`
	Items []*BoardItem `@@* "}"`
}

// BoardItem is a statement inside a board block.
type BoardItem struct {
	Description *string     `  "description" @String`
	Timing      *TimingDecl `| @@`
	Region      *RegionDecl `| @@`
}

// TimingDecl holds timing and threshold overrides.
type TimingDecl struct {
	Settings []*Setting `"timing" "{" @@* "}"`
}

// Setting is a single key/value timing override.
type Setting struct {
	Pos   lexer.Position
	Key   string `@Ident`
	Value string `@( Duration | Percent | Size | Hex | Float | Int )`
}

// RegionDecl describes one memory region.
type RegionDecl struct {
	Pos    lexer.Position
	Name   string         `"region" @String "{"`
	Fields []*RegionField `@@* "}"`
}

// RegionField is one attribute of a region.
type RegionField struct {
	Start  *string  `  "start" @( Hex | Size | Int )`
	Length *string  `| "length" @( Hex | Size | Int )`
	Chips  []string `| "chips" "[" @Ident* "]"`
}
