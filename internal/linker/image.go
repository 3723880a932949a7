package linker

import (
	"encoding/binary"

	"github.com/beagle-lang/beagle/internal/asm/arm64"
)

// BuildImage lays the linked stream out as the raw bytes of the in-memory
// image, little-endian, with each record placed at the offset the linker
// assigned. The caller copies the result into an executable page whose base
// matches the address the stream was linked at.
func BuildImage(s *Stream, layout Layout) []byte {
	img := make([]byte, layout.TotalSize)
	for _, i := range s.Instructions() {
		off := i.Address - layout.CodeBase
		switch {
		case i.IsLabelDefinition, i.Opcode == arm64.OpDirective:
			// Zero-size records.
		case i.Relocation == arm64.RelocLabel:
			binary.LittleEndian.PutUint64(img[off:], uint64(i.Immediate))
		default:
			binary.LittleEndian.PutUint32(img[off:], i.Encoding)
		}
	}
	return img
}
