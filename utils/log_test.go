package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeLogMessage(t *testing.T) {
	assert.Equal(t, "tablette-01", SanitizeLogMessage("tablette-01"))
	assert.Equal(t, "ab[31m", SanitizeLogMessage("a\x1bb[31m"))
	assert.Equal(t, "line1\nline2", SanitizeLogMessage("line1\nline2"))
	assert.Equal(t, "col1\tcol2", SanitizeLogMessage("col1\tcol2"))
}

func TestSanitizeDeviceName(t *testing.T) {
	got := SanitizeDeviceName(strings.Repeat("x", 80))
	assert.Len(t, got, 53)
	assert.True(t, strings.HasSuffix(got, "..."))

	assert.Equal(t, "tablettechantier", SanitizeDeviceName("tablette\rchantier"))
}
