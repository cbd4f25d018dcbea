package vktest

import (
	"github.com/spaghettifunk/vkbase/engine/renderer/vulkan"
)

// Scene is a vulkan.Renderer that counts its callbacks and records a draw
// into every frame.
type Scene struct {
	Prepares  int
	Teardowns int
	Frames    []vulkan.FrameInfo

	PrepareErr error
	RecordErr  error

	context *vulkan.VulkanContext
}

var _ vulkan.Renderer = (*Scene)(nil)

func (s *Scene) OnPrepare(context *vulkan.VulkanContext) error {
	if s.PrepareErr != nil {
		return s.PrepareErr
	}
	s.Prepares++
	s.context = context
	return nil
}

func (s *Scene) RecordFrame(commandBuffer *vulkan.VulkanCommandBuffer, info vulkan.FrameInfo) error {
	s.Frames = append(s.Frames, info)
	if s.RecordErr != nil {
		return s.RecordErr
	}
	s.context.Driver.CmdDraw(commandBuffer.Handle, 3, 1, 0, 0)
	return nil
}

func (s *Scene) OnTeardown(context *vulkan.VulkanContext) {
	s.Teardowns++
	s.context = nil
}

// Prepared reports whether the scene currently holds GPU state.
func (s *Scene) Prepared() bool {
	return s.context != nil
}
