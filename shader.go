package vkr

import (
	"fmt"
	"os"

	vk "github.com/vulkan-go/vulkan"
)

// ShaderModule wraps a SPIR-V module. Code is passed through verbatim; no
// compilation or reflection happens here.
type ShaderModule struct {
	// Device is the device this module was created on
	Device *Device
	// Description is optional and only used in error messages and logs
	Description string
	// VKShaderModule is the native module handle
	VKShaderModule vk.ShaderModule

	refs refCount
}

// CreateShaderModule creates a shader module from SPIR-V bytes. The byte
// length must be a multiple of four.
func (d *Device) CreateShaderModule(code []byte) (*ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V code length must be a non-zero multiple of 4; got %d", len(code))
	}

	var module vk.ShaderModule
	res := vk.CreateShaderModule(d.VKDevice, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}, nil, &module)
	if err := vk.Error(res); err != nil {
		return nil, fmt.Errorf("creating shader module: %w", err)
	}

	return &ShaderModule{Device: d, VKShaderModule: module, refs: newRefCount()}, nil
}

// LoadShaderModuleFromFile reads a SPIR-V file and creates a module from it.
func (d *Device) LoadShaderModuleFromFile(file string) (*ShaderModule, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	module, err := d.CreateShaderModule(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	module.Description = file
	return module, nil
}

// VKPipelineShaderStageCreateInfo fills a native stage description for this
// module.
func (s *ShaderModule) VKPipelineShaderStageCreateInfo(stage vk.ShaderStageFlagBits, entryPoint string) vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: s.VKShaderModule,
		PName:  safeString(entryPoint),
	}
}

// Retain adds a reference.
func (s *ShaderModule) Retain() {
	s.refs.retain()
}

// Release drops the caller's reference, scheduling the native module into
// the fenced deleter on the last one. Pipelines created from the module are
// unaffected.
func (s *ShaderModule) Release() {
	if !s.refs.release() {
		return
	}
	d := s.Device
	d.mu.Lock()
	d.deleter.deleteShaderModule(s.VKShaderModule, d.nextPendingSerial())
	d.mu.Unlock()
	s.VKShaderModule = vk.NullShaderModule
}
