package waitlist

import (
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sixDigits = regexp.MustCompile(`^[1-9][0-9]{5}$`)

func TestGenerateVerificationCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		code, err := GenerateVerificationCode()
		require.NoError(t, err)
		require.Regexp(t, sixDigits, code)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, codeMin)
		assert.LessOrEqual(t, n, codeMax)

		seen[code] = struct{}{}
	}
	// 500 draws from 900000 values should almost never collide much.
	assert.Greater(t, len(seen), 490)
}

func TestOptionalText(t *testing.T) {
	assert.Nil(t, optionalText(""))
	assert.Nil(t, optionalText("   "))
	assert.Nil(t, optionalText("<script>alert(1)</script>"))
	assert.Equal(t, "Ada", *optionalText("  <b>Ada</b> "))
	assert.Equal(t, "Tom & Jerry", *optionalText("Tom & Jerry"))
}
