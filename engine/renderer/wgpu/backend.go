package wgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"

	"parcelscape/engine/core"
	"parcelscape/engine/geometry"
	m "parcelscape/engine/math"
	"parcelscape/engine/platform"
	"parcelscape/engine/renderer"
)

/**
 * WebGPU backend. Owns the surface tied to the platform window, the
 * device/queue pair, a depth buffer matching the surface, and the one
 * opaque pipeline every parcel draws with.
 *
 * GPU loss at startup is surfaced as core.ErrNoGPU so the caller can
 * treat it as fatal; there is no software fallback behind a window.
 */

type Backend struct {
	platform *platform.Platform

	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	config       *wgpu.SurfaceConfiguration
	depthTexture *wgpu.Texture
	depthView    *wgpu.TextureView

	pipeline *pipeline

	slots []*geometrySlot
	free  []uint32

	// Per-frame state between BeginFrame and EndFrame.
	frameView    *wgpu.TextureView
	frameTexture *wgpu.Texture
	encoder      *wgpu.CommandEncoder
	pass         *wgpu.RenderPassEncoder
	projView     m.Mat4
}

func New(p *platform.Platform) *Backend {
	return &Backend{platform: p}
}

func (b *Backend) Initialize(appName string, width, height uint32) error {
	b.instance = wgpu.CreateInstance(nil)
	if b.instance == nil {
		return fmt.Errorf("%w: cannot create webgpu instance", core.ErrNoGPU)
	}
	b.surface = b.instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(b.platform.Window))
	if b.surface == nil {
		return fmt.Errorf("%w: cannot create window surface", core.ErrNoGPU)
	}

	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: b.surface,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrNoGPU, err)
	}
	b.adapter = adapter

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrNoGPU, err)
	}
	b.device = device
	b.queue = device.GetQueue()

	caps := b.surface.GetCapabilities(adapter)
	if len(caps.Formats) == 0 {
		return fmt.Errorf("%w: surface reports no formats", core.ErrNoGPU)
	}
	b.config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       width,
		Height:      height,
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	b.surface.Configure(b.adapter, b.device, b.config)

	if err := b.createDepthBuffer(width, height); err != nil {
		return err
	}
	pl, err := newPipeline(b.device, b.config.Format)
	if err != nil {
		return err
	}
	b.pipeline = pl

	core.LogInfo("%s: webgpu surface %dx%d format %v", appName, width, height, b.config.Format)
	return nil
}

// Shutdown releases in dependency order: geometries, pipeline, depth,
// then queue/device/surface.
func (b *Backend) Shutdown() error {
	for id := range b.slots {
		if b.slots[id] != nil {
			b.slots[id].release()
			b.slots[id] = nil
		}
	}
	b.free = nil
	if b.pipeline != nil {
		b.pipeline.release()
		b.pipeline = nil
	}
	b.releaseDepthBuffer()
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
	return nil
}

func (b *Backend) Resized(width, height uint32) error {
	if width == 0 || height == 0 {
		// Minimized; surface reconfiguration waits for a real size.
		return nil
	}
	b.config.Width = width
	b.config.Height = height
	b.surface.Configure(b.adapter, b.device, b.config)
	b.releaseDepthBuffer()
	return b.createDepthBuffer(width, height)
}

func (b *Backend) createDepthBuffer(width, height uint32) error {
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     "depth",
		Usage:     wgpu.TextureUsageRenderAttachment,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatDepth32Float,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return fmt.Errorf("create depth texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return fmt.Errorf("create depth view: %w", err)
	}
	b.depthTexture = tex
	b.depthView = view
	return nil
}

func (b *Backend) releaseDepthBuffer() {
	if b.depthView != nil {
		b.depthView.Release()
		b.depthView = nil
	}
	if b.depthTexture != nil {
		b.depthTexture.Release()
		b.depthTexture = nil
	}
}

func (b *Backend) BeginFrame(packet *renderer.RenderPacket) error {
	frame, err := b.surface.GetCurrentTexture()
	if err != nil {
		// Lost or outdated surface; reconfigure and drop the frame.
		b.surface.Configure(b.adapter, b.device, b.config)
		return fmt.Errorf("acquire surface texture: %w", err)
	}
	view, err := frame.CreateView(nil)
	if err != nil {
		return fmt.Errorf("create frame view: %w", err)
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		return fmt.Errorf("create command encoder: %w", err)
	}

	b.pass = encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0.08, G: 0.09, B: 0.11, A: 1},
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
		},
	})
	b.pass.SetPipeline(b.pipeline.renderPipeline)

	b.frameTexture = frame
	b.frameView = view
	b.encoder = encoder
	b.projView = packet.Projection.Mul(packet.View)
	return nil
}

func (b *Backend) DrawGeometry(data *renderer.GeometryRenderData) error {
	if b.pass == nil {
		return fmt.Errorf("draw outside frame")
	}
	slot, err := b.slot(data.Geometry.InternalID)
	if err != nil {
		return err
	}
	mvp := depthRangeZeroToOne.Mul(b.projView.Mul(data.Model))
	b.queue.WriteBuffer(slot.uniformBuffer, 0, wgpu.ToBytes(mvp.Data[:]))

	b.pass.SetBindGroup(0, slot.bindGroup, nil)
	b.pass.SetVertexBuffer(0, slot.vertexBuffer, 0, wgpu.WholeSize)
	b.pass.SetIndexBuffer(slot.indexBuffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	b.pass.DrawIndexed(slot.indexCount, 1, 0, 0, 0)
	return nil
}

func (b *Backend) EndFrame(packet *renderer.RenderPacket) error {
	b.pass.End()
	b.pass.Release()
	b.pass = nil

	cmd, err := b.encoder.Finish(nil)
	b.encoder.Release()
	b.encoder = nil
	if err != nil {
		return fmt.Errorf("finish command encoder: %w", err)
	}
	b.queue.Submit(cmd)
	cmd.Release()

	b.surface.Present()
	b.frameView.Release()
	b.frameView = nil
	b.frameTexture.Release()
	b.frameTexture = nil
	return nil
}

func (b *Backend) CreateGeometry(g *renderer.Geometry, mesh *geometry.MeshData) error {
	slot, err := newGeometrySlot(b.device, b.pipeline, mesh)
	if err != nil {
		return err
	}
	var id uint32
	if n := len(b.free); n > 0 {
		id = b.free[n-1]
		b.free = b.free[:n-1]
		b.slots[id] = slot
	} else {
		id = uint32(len(b.slots))
		b.slots = append(b.slots, slot)
	}
	g.InternalID = id
	return nil
}

func (b *Backend) DestroyGeometry(g *renderer.Geometry) {
	id := g.InternalID
	if id == renderer.InvalidID || int(id) >= len(b.slots) || b.slots[id] == nil {
		return
	}
	b.slots[id].release()
	b.slots[id] = nil
	b.free = append(b.free, id)
}

func (b *Backend) slot(id uint32) (*geometrySlot, error) {
	if id == renderer.InvalidID || int(id) >= len(b.slots) || b.slots[id] == nil {
		return nil, fmt.Errorf("unknown geometry %d", id)
	}
	return b.slots[id], nil
}

// depthRangeZeroToOne remaps clip z from the [-w,w] the projection
// emits to the [0,w] WebGPU samples.
var depthRangeZeroToOne = m.Mat4{Data: [16]float32{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}}
