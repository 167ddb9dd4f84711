package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelscape/engine/core"
)

// Resize payloads must arrive as *SystemEvent; listeners type-assert on
// the pointer and drop the event otherwise.
func TestFramebufferResizeFiresPointerPayload(t *testing.T) {
	core.EventSystemInitialize()

	var got *core.SystemEvent
	handle := core.EventRegister(core.EVENT_CODE_RESIZED, func(context core.EventContext) bool {
		se, ok := context.Data.(*core.SystemEvent)
		if !ok {
			return false
		}
		got = se
		return false
	})
	require.NotNil(t, handle)
	defer core.EventUnregister(handle)

	framebufferSizeCallback(nil, 800, 600)

	require.NotNil(t, got, "resize listener never saw a *SystemEvent payload")
	assert.Equal(t, uint32(800), got.WindowWidth)
	assert.Equal(t, uint32(600), got.WindowHeight)
}
