package timesrc

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

type exifEntry struct {
	tag uint16
	val string
}

// buildExifJPEG 生成一个只含 APP1/EXIF 段的最小 JPEG；空字符串表示省略该标签。
func buildExifJPEG(t *testing.T, imageTime, original, digitized string) []byte {
	t.Helper()

	var ifd0, sub []exifEntry
	if imageTime != "" {
		ifd0 = append(ifd0, exifEntry{0x0132, imageTime})
	}
	if original != "" {
		sub = append(sub, exifEntry{0x9003, original})
	}
	if digitized != "" {
		sub = append(sub, exifEntry{0x9004, digitized})
	}

	le := binary.LittleEndian
	ifd0Count := len(ifd0)
	if len(sub) > 0 {
		ifd0Count++ // ExifIFDPointer
	}
	ifd0Off := 8
	subOff := ifd0Off + 2 + ifd0Count*12 + 4
	dataOff := subOff
	if len(sub) > 0 {
		dataOff = subOff + 2 + len(sub)*12 + 4
	}

	tiff := make([]byte, dataOff)
	copy(tiff, "II")
	le.PutUint16(tiff[2:], 42)
	le.PutUint32(tiff[4:], uint32(ifd0Off))

	var data []byte
	writeASCII := func(p []byte, e exifEntry) {
		v := append([]byte(e.val), 0)
		le.PutUint16(p[0:], e.tag)
		le.PutUint16(p[2:], 2) // ASCII
		le.PutUint32(p[4:], uint32(len(v)))
		le.PutUint32(p[8:], uint32(dataOff+len(data)))
		data = append(data, v...)
	}

	p := tiff[ifd0Off:]
	le.PutUint16(p, uint16(ifd0Count))
	p = p[2:]
	for _, e := range ifd0 {
		writeASCII(p, e)
		p = p[12:]
	}
	if len(sub) > 0 {
		le.PutUint16(p[0:], 0x8769)
		le.PutUint16(p[2:], 4) // LONG
		le.PutUint32(p[4:], 1)
		le.PutUint32(p[8:], uint32(subOff))
		p = p[12:]
	}
	le.PutUint32(p, 0)

	if len(sub) > 0 {
		p = tiff[subOff:]
		le.PutUint16(p, uint16(len(sub)))
		p = p[2:]
		for _, e := range sub {
			writeASCII(p, e)
			p = p[12:]
		}
		le.PutUint32(p, 0)
	}
	tiff = append(tiff, data...)

	seg := append([]byte("Exif\x00\x00"), tiff...)
	out := []byte{0xFF, 0xD8, 0xFF, 0xE1}
	out = binary.BigEndian.AppendUint16(out, uint16(len(seg)+2))
	out = append(out, seg...)
	out = append(out, 0xFF, 0xD9)
	return out
}

// buildMP4 生成 ftyp + moov/mvhd(v0) 的最小容器；creation 为 1904 纪元秒。
func buildMP4(creation uint32) []byte {
	be := binary.BigEndian

	var b []byte
	b = be.AppendUint32(b, 20)
	b = append(b, "ftypisom"...)
	b = be.AppendUint32(b, 0)
	b = append(b, "isom"...)

	b = be.AppendUint32(b, 8+108)
	b = append(b, "moov"...)

	b = be.AppendUint32(b, 108)
	b = append(b, "mvhd"...)
	b = be.AppendUint32(b, 0)        // version + flags
	b = be.AppendUint32(b, creation) // creation_time
	b = be.AppendUint32(b, creation) // modification_time
	b = be.AppendUint32(b, 1000)     // timescale
	b = be.AppendUint32(b, 0)        // duration
	b = be.AppendUint32(b, 0x00010000)
	b = be.AppendUint16(b, 0x0100)
	b = append(b, make([]byte, 2+8)...)
	b = append(b, make([]byte, 36)...) // matrix
	b = append(b, make([]byte, 24)...) // pre_defined
	b = be.AppendUint32(b, 2)          // next_track_ID
	return b
}

func writeFile(t *testing.T, dir, name string, b []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}
