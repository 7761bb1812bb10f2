package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "postgres://desk:***@db:5432/quotes",
		MaskDSN("postgres://desk:s3cret@db:5432/quotes"))
	assert.Equal(t, "output/archive.db", MaskDSN("output/archive.db"))
}

func TestMaskHeaders(t *testing.T) {
	in := map[string]string{
		"Authorization": "Bearer 34d76d4e52764fff",
		"Content-Type":  "application/json",
		"cookie":        "ab",
	}
	out := MaskHeaders(in)

	assert.Equal(t, "Bear***", out["Authorization"])
	assert.Equal(t, "application/json", out["Content-Type"])
	assert.Equal(t, "***", out["cookie"])
	assert.Equal(t, "Bearer 34d76d4e52764fff", in["Authorization"], "input is untouched")
}
