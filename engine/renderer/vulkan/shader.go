package vulkan

import (
	"encoding/binary"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkbase/engine/core"
)

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
	/** @brief The pipeline shader stage creation info. */
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

// ShaderModuleCreate wraps SPIR-V bytecode in a shader module. The code must
// be a whole number of 32-bit little-endian words.
func ShaderModuleCreate(context *VulkanContext, code []byte) (vk.ShaderModule, error) {
	words, err := bytesToBytecode(code)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    words,
	}
	module, res := context.Driver.CreateShaderModule(context.Device.LogicalDevice, &createInfo)
	if err := checkResult("vkCreateShaderModule", res); err != nil {
		return nil, err
	}
	return module, nil
}

// NewShaderStage creates the module for one stage and the stage description
// a pipeline needs. The module can be destroyed once the pipeline exists.
func NewShaderStage(context *VulkanContext, code []byte, stage vk.ShaderStageFlagBits) (*VulkanShaderStage, error) {
	module, err := ShaderModuleCreate(context, code)
	if err != nil {
		return nil, err
	}
	return &VulkanShaderStage{
		Handle: module,
		ShaderStageCreateInfo: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  stage,
			Module: module,
			PName:  VulkanSafeString("main"),
		},
	}, nil
}

func (s *VulkanShaderStage) Destroy(context *VulkanContext) {
	if s.Handle != nil {
		context.Driver.DestroyShaderModule(context.Device.LogicalDevice, s.Handle)
		s.Handle = nil
	}
}

// PipelineCacheCreate creates an empty pipeline cache shared by every
// pipeline built on the device.
func PipelineCacheCreate(context *VulkanContext) (vk.PipelineCache, error) {
	createInfo := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	cache, res := context.Driver.CreatePipelineCache(context.Device.LogicalDevice, &createInfo)
	if err := checkResult("vkCreatePipelineCache", res); err != nil {
		return nil, err
	}
	return cache, nil
}

func bytesToBytecode(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("shader bytecode size %d is not a positive multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words, nil
}
