package exttest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Version: 0.8.24+commit.e11b9ed9.Linux.g++", "0.8.24+commit.e11b9ed9.Linux.g++"},
		{" 0.8.24+commit.e11b9ed9.Linux.g++\n", "0.8.24+commit.e11b9ed9.Linux.g++"},
		{"0.8.25-nightly.2024.2.1+commit.deadbeef.Emscripten.clang", "0.8.25-nightly.2024.2.1+commit.deadbeef.Emscripten.clang"},
	}
	for _, tt := range tests {
		got, err := ParseVersion(tt.input)
		require.NoError(t, err)
		require.Equal(t, tt.expected, got)
	}
}

func TestParseVersionFailure(t *testing.T) {
	for _, input := range []string{
		"",
		"   ",
		"Version: 0.8.24\nwarning: something",
		"Usage: foo",
		"error: command not found",
		"Version:",
	} {
		_, err := ParseVersion(input)
		require.ErrorIs(t, err, ErrVersionParse, "input %q", input)
	}
}

func TestShortVersion(t *testing.T) {
	for in, want := range map[string]string{
		"0.8.24+commit.e11b9ed9.Linux.g++":      "0.8.24",
		"0.8.25-nightly.2024.2.1+commit.abcdef": "0.8.25",
		"0.8.24":                                "0.8.24",
	} {
		got, err := ShortVersion(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ShortVersion("commit.e11b9ed9")
	require.ErrorIs(t, err, ErrVersionParse)
}

func TestVersionLine(t *testing.T) {
	out := "solc, the solidity compiler commandline interface\nVersion: 0.8.24+commit.e11b9ed9.Linux.g++\n"
	require.Equal(t, "Version: 0.8.24+commit.e11b9ed9.Linux.g++", VersionLine(out))
	require.Equal(t, "0.8.24+commit.e11b9ed9.Emscripten.clang", VersionLine("\n0.8.24+commit.e11b9ed9.Emscripten.clang\n\n"))
	require.Empty(t, VersionLine(""))
}
