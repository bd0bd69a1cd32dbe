package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{name: "plain", input: "800", want: 800},
		{name: "thousands separator", input: "1,234", want: 1234},
		{name: "kilo suffix", input: "15K", want: 15_000},
		{name: "lowercase kilo", input: "15k", want: 15_000},
		{name: "mega with decimal", input: "1.25M", want: 1_250_000},
		{name: "giga with decimal", input: "2.3B", want: 2_300_000_000},
		{name: "decimal kilo", input: "1.5k", want: 1500},
		{name: "trailing word subscribers", input: "1.25M subscribers", want: 1_250_000},
		{name: "trailing word views", input: "2.3B views", want: 2_300_000_000},
		{name: "trailing word singular", input: "1 subscriber", want: 1},
		{name: "separator and word", input: "1,234 videos", want: 1234},
		{name: "space separated thousands", input: "1 234 567", want: 1_234_567},
		{name: "zero", input: "0", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCount(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCount_WordSuffixEquivalence(t *testing.T) {
	bare, err := ParseCount("1.25M")
	require.NoError(t, err)

	worded, err := ParseCount("1.25M subscribers")
	require.NoError(t, err)

	assert.Equal(t, bare, worded)
}

func TestParseCount_NoNumber(t *testing.T) {
	for _, input := range []string{"", "subscribers", "about"} {
		_, err := ParseCount(input)
		assert.ErrorIs(t, err, ErrNoNumber, "input %q", input)
	}
}
