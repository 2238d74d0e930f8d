package tesseract

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const maxTIFFPages = 10000

var errNotTIFF = errors.New("not a tiff file")

// CountTIFFPages walks the image file directory chain of a classic TIFF.
func CountTIFFPages(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return countIFDs(f)
}

func countIFDs(r io.ReaderAt) (int, error) {
	header := make([]byte, 8)
	if _, err := r.ReadAt(header, 0); err != nil {
		return 0, errNotTIFF
	}

	var order binary.ByteOrder
	switch string(header[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return 0, errNotTIFF
	}
	if order.Uint16(header[2:4]) != 42 {
		return 0, errNotTIFF
	}

	offset := int64(order.Uint32(header[4:8]))
	seen := make(map[int64]struct{})
	pages := 0
	buf2 := make([]byte, 2)
	buf4 := make([]byte, 4)
	for offset != 0 {
		if _, dup := seen[offset]; dup {
			return 0, fmt.Errorf("ifd loop at offset %d", offset)
		}
		seen[offset] = struct{}{}
		if pages >= maxTIFFPages {
			return 0, fmt.Errorf("more than %d pages", maxTIFFPages)
		}

		if _, err := r.ReadAt(buf2, offset); err != nil {
			return 0, fmt.Errorf("read ifd at %d: %w", offset, err)
		}
		entries := int64(order.Uint16(buf2))
		if _, err := r.ReadAt(buf4, offset+2+entries*12); err != nil {
			return 0, fmt.Errorf("read next ifd offset: %w", err)
		}
		pages++
		offset = int64(order.Uint32(buf4))
	}
	if pages == 0 {
		return 0, errNotTIFF
	}
	return pages, nil
}
