package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"My Shop":           "my-shop",
		"  Blog   Engine  ": "blog-engine",
		"Café & Co!":        "caf--co",
		"already_ok-1":      "already_ok-1",
		"":                  "",
	}
	for in, want := range cases {
		require.Equal(t, want, Slugify(in), "input %q", in)
	}
}

func TestDeploymentName(t *testing.T) {
	require.Equal(t, "my-app.v2", DeploymentName("My App.v2"))
}
