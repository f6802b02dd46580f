package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetters(t *testing.T) {
	t.Setenv("SR_TEST_STRING", "hello")
	t.Setenv("SR_TEST_INT", " 42 ")
	t.Setenv("SR_TEST_BAD_INT", "x")
	t.Setenv("SR_TEST_BOOL", "true")
	t.Setenv("SR_TEST_LIST", "a, b,,c")

	assert.Equal(t, "hello", GetString("SR_TEST_STRING", "fallback"))
	assert.Equal(t, "fallback", GetString("SR_TEST_MISSING", "fallback"))
	assert.Equal(t, 42, GetInt("SR_TEST_INT", 0))
	assert.Equal(t, 7, GetInt("SR_TEST_BAD_INT", 7))
	assert.True(t, GetBool("SR_TEST_BOOL", false))
	assert.Equal(t, []string{"a", "b", "c"}, GetStrings("SR_TEST_LIST", nil))
	assert.Equal(t, []string{"z"}, GetStrings("SR_TEST_MISSING", []string{"z"}))
}
