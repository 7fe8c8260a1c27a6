package sync

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"io"
)

// compressMagic tags the wire format of a compressed payload: 4-byte
// magic, 4-byte little-endian original size, then a raw deflate stream
// (spec.md 4.5.2, grounded on original_source's Compression.cpp which
// uses the same 8-byte header ahead of a zlib stream; we use stdlib
// compress/flate for the codec itself — see DESIGN.md's klauspost/compress
// decision for why no third-party flate is wired here).
const compressMagic uint32 = 0x5A4C4942

// minCompressSize below this input size compression is skipped outright
// (Compression.cpp's MIN_COMPRESS_SIZE, the framing overhead isn't worth it).
const minCompressSize = 64

// maxDecompressedSize is a sanity ceiling against a maliciously or
// corruptly inflated size field (Compression.cpp's 1 GiB guard).
const maxDecompressedSize = 1 << 30

// headerLen is the fixed 8-byte header: magic + original size, both
// little-endian uint32.
const headerLen = 8

// isCompressible probes the first 256 bytes of data for entropy: if more
// than 90% of sampled bytes are distinct, the data is treated as already
// dense (e.g. already-compressed media) and compression is skipped
// (Compression.cpp's isCompressible heuristic).
func isCompressible(data []byte) bool {
	if len(data) < minCompressSize {
		return false
	}
	sample := data
	if len(sample) > 256 {
		sample = sample[:256]
	}
	seen := make(map[byte]struct{}, len(sample))
	for _, b := range sample {
		seen[b] = struct{}{}
	}
	distinctRatio := float64(len(seen)) / float64(len(sample))
	return distinctRatio <= 0.9
}

// Compress returns the framed compressed form of data, or ok=false if
// compression was skipped (either because data failed the entropy probe,
// or because the compressed result was not smaller than the original —
// in either case the caller must transmit data uncompressed).
func Compress(data []byte) (out []byte, ok bool, err error) {
	if !isCompressible(data) {
		return nil, false, nil
	}

	var body bytes.Buffer
	w, err := flate.NewWriter(&body, flate.DefaultCompression)
	if err != nil {
		return nil, false, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, false, err
	}
	if err := w.Close(); err != nil {
		return nil, false, err
	}

	if body.Len()+headerLen >= len(data) {
		return nil, false, nil
	}

	header := make([]byte, headerLen)
	binary.LittleEndian.PutUint32(header[0:4], compressMagic)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(data)))

	out = make([]byte, 0, headerLen+body.Len())
	out = append(out, header...)
	out = append(out, body.Bytes()...)
	return out, true, nil
}

// framedCompressed/framedRaw tag the one-byte prefix WrapForTransfer adds
// ahead of a chunked payload so the receiver knows whether to decompress
// after reassembly.
const (
	framedRaw        byte = 0
	framedCompressed byte = 1
)

// WrapForTransfer prepends a one-byte compression flag to data, using
// Compress's result when beneficial and the raw bytes otherwise. The
// wrapped form is what gets split into chunks for DELTA_DATA/FILE_DATA.
func WrapForTransfer(data []byte) ([]byte, error) {
	compressed, ok, err := Compress(data)
	if err != nil {
		return nil, err
	}
	if !ok {
		return append([]byte{framedRaw}, data...), nil
	}
	return append([]byte{framedCompressed}, compressed...), nil
}

// UnwrapTransfer reverses WrapForTransfer.
func UnwrapTransfer(wrapped []byte) ([]byte, error) {
	if len(wrapped) == 0 {
		return nil, errBadCompressedFormat("empty transfer payload")
	}
	flag, body := wrapped[0], wrapped[1:]
	if flag == framedRaw {
		return body, nil
	}
	return Decompress(body)
}

// Decompress reverses Compress, validating the magic and the decompressed
// size against maxDecompressedSize before allocating the output buffer.
func Decompress(payload []byte) ([]byte, error) {
	if len(payload) < headerLen {
		return nil, errBadCompressedFormat("payload shorter than header")
	}
	magic := binary.LittleEndian.Uint32(payload[0:4])
	if magic != compressMagic {
		return nil, errBadCompressedFormat("bad magic")
	}
	originalSize := binary.LittleEndian.Uint32(payload[4:8])
	if originalSize > maxDecompressedSize {
		return nil, errBadCompressedFormat("declared size exceeds sanity limit")
	}

	r := flate.NewReader(bytes.NewReader(payload[headerLen:]))
	defer r.Close()

	out := make([]byte, 0, originalSize)
	buf := bytes.NewBuffer(out)
	if _, err := io.CopyN(buf, r, int64(originalSize)); err != nil && err != io.EOF {
		return nil, errBadCompressedFormat("truncated or corrupt stream")
	}
	return buf.Bytes(), nil
}
