package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputKeyStateRoundTrip(t *testing.T) {
	require.NoError(t, InputInitialize())
	EventSystemInitialize()

	var pressed []KeyCode
	handle := EventRegister(EVENT_CODE_KEY_PRESSED, func(context EventContext) bool {
		ke, ok := context.Data.(*KeyEvent)
		require.True(t, ok)
		pressed = append(pressed, ke.KeyCode)
		return false
	})
	require.NotNil(t, handle)
	defer EventUnregister(handle)

	InputProcessKey(KEY_R, true)
	assert.True(t, InputIsKeyDown(KEY_R))
	assert.False(t, InputWasKeyDown(KEY_R))

	require.NoError(t, InputUpdate(0))
	assert.True(t, InputWasKeyDown(KEY_R))

	InputProcessKey(KEY_R, false)
	assert.False(t, InputIsKeyDown(KEY_R))
	assert.Equal(t, []KeyCode{KEY_R}, pressed)
}

func TestInputIgnoresCodesPastSentinel(t *testing.T) {
	require.NoError(t, InputInitialize())

	InputProcessKey(KEYS_MAX_KEYS, true)
	assert.False(t, InputIsKeyDown(KEYS_MAX_KEYS))
	InputProcessKey(KEYS_MAX_KEYS+100, true)
	assert.False(t, InputIsKeyDown(KEYS_MAX_KEYS+100))
}
