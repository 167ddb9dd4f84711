package wgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// One opaque pipeline covers every parcel draw: vertex-baked colors,
// per-vertex lambert in the vertex stage, depth test on, no blending.
const shaderSource = `
struct Uniforms {
    mvp: mat4x4<f32>,
};
@group(0) @binding(0) var<uniform> u: Uniforms;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) color: vec4<f32>,
};

@vertex
fn vs_main(
    @location(0) position: vec3<f32>,
    @location(1) normal: vec3<f32>,
    @location(2) color: vec4<f32>,
) -> VertexOutput {
    var out: VertexOutput;
    out.position = u.mvp * vec4<f32>(position, 1.0);
    let light = normalize(vec3<f32>(0.4, 1.0, 0.3));
    let k = 0.35 + 0.65 * max(dot(normalize(normal), light), 0.0);
    out.color = vec4<f32>(color.rgb * k, color.a);
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return in.color;
}
`

// Vertex layout: position vec3, normal vec3, color vec4, interleaved.
const vertexStride = 10 * 4

type pipeline struct {
	shader          *wgpu.ShaderModule
	bindGroupLayout *wgpu.BindGroupLayout
	layout          *wgpu.PipelineLayout
	renderPipeline  *wgpu.RenderPipeline
}

func newPipeline(device *wgpu.Device, format wgpu.TextureFormat) (*pipeline, error) {
	shader, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "parcel",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaderSource},
	})
	if err != nil {
		return nil, fmt.Errorf("create shader module: %w", err)
	}

	bgl, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "parcel-uniforms",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex,
			Buffer: wgpu.BufferBindingLayout{
				Type: wgpu.BufferBindingTypeUniform,
			},
		}},
	})
	if err != nil {
		shader.Release()
		return nil, fmt.Errorf("create bind group layout: %w", err)
	}

	layout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "parcel",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		bgl.Release()
		shader.Release()
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}

	rp, err := device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "parcel",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: vertexStride,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
					{Format: wgpu.VertexFormatFloat32x4, Offset: 24, ShaderLocation: 2},
				},
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			// Walls of hole rings face inward, so both windings stay.
			CullMode: wgpu.CullModeNone,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth32Float,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				Blend:     &wgpu.BlendStateReplace,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
	})
	if err != nil {
		layout.Release()
		bgl.Release()
		shader.Release()
		return nil, fmt.Errorf("create render pipeline: %w", err)
	}

	return &pipeline{
		shader:          shader,
		bindGroupLayout: bgl,
		layout:          layout,
		renderPipeline:  rp,
	}, nil
}

func (p *pipeline) release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
	}
	if p.layout != nil {
		p.layout.Release()
	}
	if p.bindGroupLayout != nil {
		p.bindGroupLayout.Release()
	}
	if p.shader != nil {
		p.shader.Release()
	}
}
