package wgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"parcelscape/engine/geometry"
)

// geometrySlot holds the device buffers for one uploaded mesh plus its
// MVP uniform and bind group.
type geometrySlot struct {
	vertexBuffer  *wgpu.Buffer
	indexBuffer   *wgpu.Buffer
	uniformBuffer *wgpu.Buffer
	bindGroup     *wgpu.BindGroup
	indexCount    uint32
}

func newGeometrySlot(device *wgpu.Device, pl *pipeline, mesh *geometry.MeshData) (*geometrySlot, error) {
	if mesh.Empty() {
		return nil, fmt.Errorf("empty mesh")
	}
	vbuf, err := device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "parcel-vertices",
		Contents: wgpu.ToBytes(mesh.Vertices),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		return nil, fmt.Errorf("create vertex buffer: %w", err)
	}
	ibuf, err := device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "parcel-indices",
		Contents: wgpu.ToBytes(mesh.Indices),
		Usage:    wgpu.BufferUsageIndex,
	})
	if err != nil {
		vbuf.Release()
		return nil, fmt.Errorf("create index buffer: %w", err)
	}
	ubuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "parcel-mvp",
		Size:  16 * 4,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		ibuf.Release()
		vbuf.Release()
		return nil, fmt.Errorf("create uniform buffer: %w", err)
	}
	bg, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "parcel-mvp",
		Layout: pl.bindGroupLayout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  ubuf,
			Size:    16 * 4,
		}},
	})
	if err != nil {
		ubuf.Release()
		ibuf.Release()
		vbuf.Release()
		return nil, fmt.Errorf("create bind group: %w", err)
	}

	return &geometrySlot{
		vertexBuffer:  vbuf,
		indexBuffer:   ibuf,
		uniformBuffer: ubuf,
		bindGroup:     bg,
		indexCount:    uint32(len(mesh.Indices)),
	}, nil
}

func (s *geometrySlot) release() {
	if s.bindGroup != nil {
		s.bindGroup.Release()
	}
	if s.uniformBuffer != nil {
		s.uniformBuffer.Release()
	}
	if s.indexBuffer != nil {
		s.indexBuffer.Release()
	}
	if s.vertexBuffer != nil {
		s.vertexBuffer.Release()
	}
}
