package glhost

import (
	"reflect"
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"github.com/shadermp/engine/gpu"
)

// PBOReader implements recorder.PixelReader with the teacher's
// double-buffered pixel-pack-buffer read-back
// (renderer/offscreen.go's OffscreenRenderer.readPixelsAsync):
// the transfer for the just-rendered frame is kicked off into one PBO
// while the previous frame's already-completed transfer is mapped and
// returned, so ReadPixelsRGBA8 never stalls waiting on the GPU.
type PBOReader struct {
	width, height int
	pbos          [2]uint32
	index         int
}

// NewPBOReader allocates the two PBOs sized for width*height RGBA8
// frames.
func NewPBOReader(width, height int) *PBOReader {
	r := &PBOReader{width: width, height: height}
	bufferSize := width * height * 4
	gl.GenBuffers(2, &r.pbos[0])
	for _, pbo := range r.pbos {
		gl.BindBuffer(gl.PIXEL_PACK_BUFFER, pbo)
		gl.BufferData(gl.PIXEL_PACK_BUFFER, bufferSize, nil, gl.STREAM_READ)
	}
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
	return r
}

// Destroy releases both PBOs.
func (r *PBOReader) Destroy() {
	gl.DeleteBuffers(2, &r.pbos[0])
}

// ReadPixelsRGBA8 implements recorder.PixelReader.
func (r *PBOReader) ReadPixelsRGBA8(fbo gpu.Framebuffer, width, height int) []byte {
	current := r.index
	next := (r.index + 1) % 2
	bufferSize := int32(width * height * 4)

	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(fbo))
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, r.pbos[current])
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, nil)

	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, r.pbos[next])
	ptr := gl.MapBufferRange(gl.PIXEL_PACK_BUFFER, 0, int(bufferSize), gl.MAP_READ_BIT)
	if ptr == nil {
		gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		return nil
	}

	var pixelData []byte
	header := (*reflect.SliceHeader)(unsafe.Pointer(&pixelData))
	header.Data = uintptr(ptr)
	header.Len = int(bufferSize)
	header.Cap = int(bufferSize)

	gl.UnmapBuffer(gl.PIXEL_PACK_BUFFER)
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

	r.index = next
	return pixelData
}
