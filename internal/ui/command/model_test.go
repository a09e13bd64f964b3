package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cmd, ok := Parse("  Upload ./brief final.pdf ")
	assert.True(t, ok)
	assert.Equal(t, Upload, cmd.Name)
	assert.Equal(t, []string{"./brief", "final.pdf"}, cmd.Args)
	assert.Equal(t, "./brief final.pdf", cmd.Arg(0))
	assert.Equal(t, "final.pdf", cmd.Arg(1))
	assert.Empty(t, cmd.Arg(2))
}

func TestParseEmpty(t *testing.T) {
	_, ok := Parse("   ")
	assert.False(t, ok)
}
