package netu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangrobe.dev/streamsource/util/netu"
)

func TestResolveAddr(t *testing.T) {
	cases := [][]string{
		{":80", "http://localhost"},
		{":443", "https://localhost"},
		{":12345", "http://localhost:12345"},
		{"tables.internal:50051", "http://tables.internal:50051"},
		{"[::1]:50051", "http://[::1]:50051"},
		{"http://0.0.0.0", "http://0.0.0.0"},
		{"https://tables.example.com/", "https://tables.example.com"},
	}

	for _, c := range cases {
		t.Run(c[0], func(t *testing.T) {
			url, err := netu.ResolveAddr(c[0])
			require.NoError(t, err)
			assert.Equal(t, c[1], url)
		})
	}
}

func TestResolveAddr_Invalid(t *testing.T) {
	for _, addr := range []string{"no-port", "ftp://host", "http://"} {
		t.Run(addr, func(t *testing.T) {
			_, err := netu.ResolveAddr(addr)
			assert.Error(t, err)
		})
	}
}
