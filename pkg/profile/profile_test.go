package profile

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinModelI(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBoard, p.Name)

	dram, ok := p.Region("dram")
	require.True(t, ok)
	assert.Equal(t, uint16(0x4000), dram.Start)
	assert.Equal(t, uint32(16384), dram.Length)
	assert.Equal(t, [8]string{"Z17", "Z16", "Z18", "Z19", "Z15", "Z20", "Z14", "Z13"}, dram.ICRefs)

	vram, ok := p.Region("VRAM")
	require.True(t, ok)
	assert.Equal(t, uint16(0x3C00), vram.Start)
	assert.Equal(t, uint32(1024), vram.Length)
	assert.Equal(t, "bit 6", vram.Chip(6))

	assert.Equal(t, 5*time.Millisecond, p.Diag.SettleDelay)
	assert.Equal(t, 200, p.Diag.ConfirmLoops)
	assert.InDelta(t, 0.80, p.Diag.CrosstalkThreshold, 1e-9)
	assert.InDelta(t, 0.90, p.Diag.OwnershipThreshold, 1e-9)
	assert.Equal(t, 10, p.Suite.RetentionRepeat)
}

func TestBuiltinNames(t *testing.T) {
	assert.Equal(t, []string{"trs80-model1", "trs80-model1-4k"}, Builtin())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join("testdata", "custom.board")

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bench", p.Name)
	assert.Equal(t, 10*time.Microsecond, p.Diag.SettleDelay)
	assert.Equal(t, 50, p.Diag.ConfirmLoops)
	assert.InDelta(t, 0.75, p.Diag.CrosstalkThreshold, 1e-9)
	assert.InDelta(t, 0.95, p.Diag.StuckThreshold, 1e-9, "unset keys keep their defaults")

	low, ok := p.Region("low")
	require.True(t, ok)
	assert.Equal(t, uint32(256), low.Length)
	assert.Equal(t, "U3", low.Chip(2))
	assert.Equal(t, "bit 3", low.Chip(3))

	second, err := Load(path + ":bench-2")
	require.NoError(t, err)
	top, ok := second.Region("top")
	require.True(t, ok)
	assert.Equal(t, uint16(0xC000), top.Start)
	assert.Equal(t, uint32(0x4000), top.Length)

	_, err = Load(path + ":missing")
	assert.Error(t, err)
}

func TestProfileErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"syntax", `board "x" { region "r" { start } }`, "parse error"},
		{"unknown key", `board "x" { timing { warp 5ms } }`, "unknown timing key"},
		{"bad threshold", `board "x" { timing { crosstalk-threshold 150% } }`, "out of range"},
		{"too many chips", `board "x" { region "r" { start 0 length 1K chips [A B C D E F G H I] } }`, "at most 8"},
		{"past 64K", `board "x" { region "r" { start 0xF000 length 8K } }`, "exceeds"},
		{"no destructive reads", `board "x" { timing { destructive-reads 0 } }`, "at least once"},
		{"empty region", `board "x" { region "r" { start 0x4000 length 0 } }`, "empty"},
		{"missing length", `board "x" { region "r" { start 0x4000 } }`, "needs both"},
		{"duplicate region", `board "x" { region "r" { start 0 length 1 } region "R" { start 1 length 1 } }`, "declared twice"},
		{"duplicate board", `board "x" { } board "x" { }`, "declared twice"},
		{"no board", `# nothing here`, "no board"},
	}

	parser, err := NewParser()
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := parser.ParseString(tt.name, tt.input)
			if err == nil {
				_, err = Build(f)
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseNumber(t *testing.T) {
	cases := map[string]uint64{
		"0":      0,
		"1024":   1024,
		"010":    10,
		"0x3C00": 0x3C00,
		"16K":    16384,
		"1k":     1024,
	}
	for in, want := range cases {
		got, err := parseNumber(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
