package testbed

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkbase/engine/core"
	"github.com/spaghettifunk/vkbase/engine/renderer/vulkan"
)

const (
	TriangleVertexShader   = "shaders/triangle.vert.spv"
	TriangleFragmentShader = "shaders/triangle.frag.spv"
)

// ShaderSource supplies SPIR-V by asset path. *assets.AssetManager is one.
type ShaderSource interface {
	Load(path string) ([]byte, error)
}

// TriangleScene draws a single triangle whose vertices come from
// gl_VertexIndex, so it needs no vertex buffer.
type TriangleScene struct {
	shaders  ShaderSource
	context  *vulkan.VulkanContext
	pipeline *vulkan.VulkanPipeline
}

var _ vulkan.Renderer = (*TriangleScene)(nil)

func NewTriangleScene(shaders ShaderSource) *TriangleScene {
	return &TriangleScene{shaders: shaders}
}

func (s *TriangleScene) OnPrepare(context *vulkan.VulkanContext) error {
	vert, err := s.loadShader(context, TriangleVertexShader, vk.ShaderStageVertexBit)
	if err != nil {
		return err
	}
	defer vert.Destroy(context)

	frag, err := s.loadShader(context, TriangleFragmentShader, vk.ShaderStageFragmentBit)
	if err != nil {
		return err
	}
	defer frag.Destroy(context)

	pipeline, err := vulkan.NewGraphicsPipeline(context, &vulkan.VulkanPipelineConfig{
		Renderpass: context.Targets.Renderpass,
		Stages: []vk.PipelineShaderStageCreateInfo{
			vert.ShaderStageCreateInfo,
			frag.ShaderStageCreateInfo,
		},
		CullMode:   vulkan.FaceCullModeBack,
		DepthTest:  true,
		DepthWrite: true,
	})
	if err != nil {
		return err
	}

	s.context = context
	s.pipeline = pipeline
	core.LogDebug("Triangle scene prepared.")
	return nil
}

func (s *TriangleScene) loadShader(context *vulkan.VulkanContext, path string, stage vk.ShaderStageFlagBits) (*vulkan.VulkanShaderStage, error) {
	code, err := s.shaders.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load shader: %w", err)
	}
	return vulkan.NewShaderStage(context, code, stage)
}

func (s *TriangleScene) RecordFrame(commandBuffer *vulkan.VulkanCommandBuffer, info vulkan.FrameInfo) error {
	if s.pipeline == nil {
		return fmt.Errorf("triangle scene is not prepared")
	}
	s.pipeline.Bind(s.context, commandBuffer, vk.PipelineBindPointGraphics)
	s.context.Driver.CmdDraw(commandBuffer.Handle, 3, 1, 0, 0)
	return nil
}

func (s *TriangleScene) OnTeardown(context *vulkan.VulkanContext) {
	if s.pipeline != nil {
		s.pipeline.Destroy(context)
		s.pipeline = nil
	}
	s.context = nil
}
