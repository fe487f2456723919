// Package profile loads board profiles: the memory regions of a board with
// the chip behind each data bit, plus optional timing and threshold
// overrides for the diagnostic engine.
package profile

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/OpenTraceLab/RetroBusDiag/pkg/diag"
	"github.com/OpenTraceLab/RetroBusDiag/pkg/memtest"
	"github.com/OpenTraceLab/RetroBusDiag/pkg/suite"
)

//go:embed builtin/*.board
var builtinFS embed.FS

// DefaultBoard names the builtin profile used when none is selected.
const DefaultBoard = "trs80-model1"

// Profile is a validated board description.
type Profile struct {
	Name        string
	Description string
	Regions     []suite.Region
	Diag        *diag.Config
	Suite       suite.Options
}

// Region looks up a region by name, ignoring case.
func (p *Profile) Region(name string) (suite.Region, bool) {
	for _, r := range p.Regions {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return suite.Region{}, false
}

// Build validates a parsed file and converts every board in it.
func Build(f *File) ([]*Profile, error) {
	var out []*Profile
	seen := make(map[string]bool)
	for _, b := range f.Boards {
		if seen[b.Name] {
			return nil, fmt.Errorf("profile: %s: board %q declared twice", b.Pos, b.Name)
		}
		seen[b.Name] = true

		p, err := buildBoard(b)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("profile: no board declared")
	}
	return out, nil
}

func buildBoard(b *Board) (*Profile, error) {
	p := &Profile{
		Name:  b.Name,
		Diag:  diag.DefaultConfig(),
		Suite: suite.DefaultOptions(),
	}

	names := make(map[string]bool)
	for _, item := range b.Items {
		switch {
		case item.Description != nil:
			p.Description = *item.Description

		case item.Timing != nil:
			for _, s := range item.Timing.Settings {
				if err := p.apply(s); err != nil {
					return nil, err
				}
			}

		case item.Region != nil:
			r, err := buildRegion(item.Region)
			if err != nil {
				return nil, err
			}
			key := strings.ToLower(r.Name)
			if names[key] {
				return nil, fmt.Errorf("profile: %s: region %q declared twice", item.Region.Pos, r.Name)
			}
			names[key] = true
			p.Regions = append(p.Regions, r)
		}
	}

	if err := p.Diag.Validate(); err != nil {
		return nil, fmt.Errorf("profile: board %q: %w", p.Name, err)
	}
	return p, nil
}

func buildRegion(d *RegionDecl) (suite.Region, error) {
	r := suite.Region{Name: d.Name}
	var haveStart, haveLength bool

	for _, f := range d.Fields {
		switch {
		case f.Start != nil:
			v, err := parseNumber(*f.Start)
			if err != nil || v > 0xFFFF {
				return r, fmt.Errorf("profile: %s: region %q: bad start %q", d.Pos, d.Name, *f.Start)
			}
			r.Start = uint16(v)
			haveStart = true

		case f.Length != nil:
			v, err := parseNumber(*f.Length)
			if err != nil {
				return r, fmt.Errorf("profile: %s: region %q: bad length %q", d.Pos, d.Name, *f.Length)
			}
			r.Length = uint32(v)
			haveLength = true

		default:
			if len(f.Chips) > len(r.ICRefs) {
				return r, fmt.Errorf("profile: %s: region %q: %d chips listed, at most %d",
					d.Pos, d.Name, len(f.Chips), len(r.ICRefs))
			}
			r.ICRefs = [8]string{}
			copy(r.ICRefs[:], f.Chips)
		}
	}

	if !haveStart || !haveLength {
		return r, fmt.Errorf("profile: %s: region %q needs both start and length", d.Pos, d.Name)
	}
	if r.Length > memtest.MaxLength {
		return r, fmt.Errorf("profile: %s: region %q: length %d exceeds 64K", d.Pos, d.Name, r.Length)
	}
	if err := r.Validate(); err != nil {
		return r, fmt.Errorf("profile: %s: %w", d.Pos, err)
	}
	return r, nil
}

// apply interprets one timing override.
func (p *Profile) apply(s *Setting) error {
	bad := func(err error) error {
		return fmt.Errorf("profile: %s: %s %q: %w", s.Pos, s.Key, s.Value, err)
	}

	switch s.Key {
	case "settle", "confirm-delay", "retention-delay":
		d, err := time.ParseDuration(strings.ReplaceAll(s.Value, "µ", "u"))
		if err != nil {
			return bad(err)
		}
		switch s.Key {
		case "settle":
			p.Diag.SettleDelay = d
		case "confirm-delay":
			p.Diag.ConfirmDelay = d
		default:
			p.Suite.RetentionDelay = d
		}

	case "confirm-loops", "retention-repeat", "destructive-reads":
		n, err := parseNumber(s.Value)
		if err != nil {
			return bad(err)
		}
		switch s.Key {
		case "confirm-loops":
			p.Diag.ConfirmLoops = int(n)
		case "retention-repeat":
			p.Suite.RetentionRepeat = int(n)
		default:
			if n < 1 {
				return bad(errors.New("must read each cell at least once"))
			}
			p.Suite.DestructiveReads = int(n)
		}

	case "stuck-threshold", "crosstalk-threshold", "ownership-threshold":
		f, err := parseFraction(s.Value)
		if err != nil {
			return bad(err)
		}
		switch s.Key {
		case "stuck-threshold":
			p.Diag.StuckThreshold = f
		case "crosstalk-threshold":
			p.Diag.CrosstalkThreshold = f
		default:
			p.Diag.OwnershipThreshold = f
		}

	default:
		return fmt.Errorf("profile: %s: unknown timing key %q", s.Pos, s.Key)
	}
	return nil
}

// parseNumber accepts decimal, 0x-prefixed hex and K-suffixed sizes.
func parseNumber(s string) (uint64, error) {
	if n := len(s); n > 1 && (s[n-1] == 'K' || s[n-1] == 'k') {
		v, err := strconv.ParseUint(s[:n-1], 10, 32)
		return v * 1024, err
	}
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return strconv.ParseUint(s[2:], 16, 32)
	}
	return strconv.ParseUint(s, 10, 32)
}

// parseFraction accepts "80%" or "0.8".
func parseFraction(s string) (float64, error) {
	if strings.HasSuffix(s, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		return v / 100, err
	}
	return strconv.ParseFloat(s, 64)
}

// Builtin returns the names of the embedded profiles.
func Builtin() []string {
	var names []string
	for _, p := range loadBuiltin() {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

var (
	builtinOnce     sync.Once
	builtinProfiles []*Profile
)

func loadBuiltin() []*Profile {
	builtinOnce.Do(parseBuiltin)
	return builtinProfiles
}

// parseBuiltin panics on error: the embedded files ship with the binary.
func parseBuiltin() {
	parser, err := NewParser()
	if err != nil {
		panic(err)
	}
	files, err := fs.Glob(builtinFS, "builtin/*.board")
	if err != nil {
		panic(err)
	}
	for _, name := range files {
		data, err := builtinFS.ReadFile(name)
		if err != nil {
			panic(err)
		}
		f, err := parser.ParseString(path.Base(name), string(data))
		if err != nil {
			panic(err)
		}
		ps, err := Build(f)
		if err != nil {
			panic(err)
		}
		builtinProfiles = append(builtinProfiles, ps...)
	}
}

// Load resolves a profile by builtin name or file path. When a file declares
// several boards, the first one is used unless name has the form
// "path:board".
func Load(name string) (*Profile, error) {
	if name == "" {
		name = DefaultBoard
	}
	for _, p := range loadBuiltin() {
		if p.Name == name {
			return p, nil
		}
	}

	file, board := name, ""
	if i := strings.LastIndex(name, ":"); i > 0 {
		if _, err := os.Stat(name); err != nil {
			file, board = name[:i], name[i+1:]
		}
	}

	parser, err := NewParser()
	if err != nil {
		return nil, err
	}
	f, err := parser.ParseFile(file)
	if err != nil {
		return nil, err
	}
	ps, err := Build(f)
	if err != nil {
		return nil, err
	}
	if board == "" {
		return ps[0], nil
	}
	for _, p := range ps {
		if p.Name == board {
			return p, nil
		}
	}
	return nil, fmt.Errorf("profile: %s: no board %q", file, board)
}
