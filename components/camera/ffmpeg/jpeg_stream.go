package ffmpeg

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// JPEG markers needed to find where one image of an image2pipe stream ends.
const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerTEM  = 0x01
	markerRST0 = 0xD0
	markerRST7 = 0xD7
)

// maxFrameBytes bounds a single image so a corrupt stream cannot grow the buffer forever.
const maxFrameBytes = 64 << 20

var errFrameTooLarge = errors.New("jpeg frame exceeds size limit")

// nextJPEG returns the bytes of the next image on r, from SOI through EOI, and leaves r at the
// first byte of the following image. Marker segments are skipped by their length, so payloads
// that happen to hold 0xFFD9 do not end the image. Entropy coded data ends at the first marker
// that is neither a stuffed 0xFF00 nor a restart marker. Anything before an SOI is skipped.
// io.EOF is returned only when r ends between images.
func nextJPEG(r *bufio.Reader) ([]byte, error) {
	if err := skipToSOI(r); err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer([]byte{0xFF, markerSOI})

	marker, err := readMarker(r, buf)
	for err == nil {
		switch {
		case marker == markerEOI:
			return buf.Bytes(), nil
		case marker == markerTEM, marker >= markerRST0 && marker <= markerRST7:
			marker, err = readMarker(r, buf)
			continue
		}
		if err = copySegment(r, buf); err != nil {
			break
		}
		if marker == markerSOS {
			marker, err = copyEntropyData(r, buf)
		} else {
			marker, err = readMarker(r, buf)
		}
	}
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

func skipToSOI(r *bufio.Reader) error {
	prev := byte(0)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if prev == 0xFF && b == markerSOI {
			return nil
		}
		prev = b
	}
}

// readMarker reads a marker, including any 0xFF fill bytes before its code.
func readMarker(r *bufio.Reader, buf *bytes.Buffer) (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if b != 0xFF {
		return 0, errors.Errorf("invalid JPEG stream: expected a marker, got 0x%02x", b)
	}
	buf.WriteByte(b)
	for b == 0xFF {
		if b, err = r.ReadByte(); err != nil {
			return 0, err
		}
		buf.WriteByte(b)
	}
	return b, nil
}

// copySegment copies a length prefixed marker segment.
func copySegment(r *bufio.Reader, buf *bytes.Buffer) error {
	var length [2]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return err
	}
	n := int(binary.BigEndian.Uint16(length[:]))
	if n < 2 {
		return errors.Errorf("invalid JPEG stream: segment length %d", n)
	}
	if buf.Len()+n > maxFrameBytes {
		return errFrameTooLarge
	}
	buf.Write(length[:])
	_, err := io.CopyN(buf, r, int64(n-2))
	return err
}

// copyEntropyData copies scan data and returns the marker that ends it.
func copyEntropyData(r *bufio.Reader, buf *bytes.Buffer) (byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		buf.WriteByte(b)
		if buf.Len() > maxFrameBytes {
			return 0, errFrameTooLarge
		}
		if b != 0xFF {
			continue
		}
		for b == 0xFF {
			if b, err = r.ReadByte(); err != nil {
				return 0, err
			}
			buf.WriteByte(b)
		}
		if b != 0x00 && (b < markerRST0 || b > markerRST7) {
			return b, nil
		}
	}
}
