package capture

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"example.com/":          "https://example.com",
		"http://example.com/":   "http://example.com",
		"https://example.com":   "https://example.com",
		" example.com/a/ ":      "https://example.com/a",
		"https://example.com//": "https://example.com/",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeURL(in), "input %q", in)
	}
}

func TestExtractDomain(t *testing.T) {
	t.Parallel()

	require.Equal(t, "example.com", ExtractDomain("https://www.example.com/path"))
	require.Equal(t, "example.com:8080", ExtractDomain("http://Example.com:8080/"))
	require.Equal(t, "not a url", ExtractDomain("not a url"))
}

func TestValidateURL(t *testing.T) {
	t.Parallel()

	require.False(t, ValidateURL("not a url"))
	require.False(t, ValidateURL(""))
	require.False(t, ValidateURL("example.com"))
	require.True(t, ValidateURL("https://example.com"))
	require.True(t, ValidateURL("http://localhost:3000/a?b=c"))
}

func TestBaseURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://example.com", BaseURL("https://example.com/a/b?c=d"))
	require.Equal(t, "nope", BaseURL("nope"))
}
