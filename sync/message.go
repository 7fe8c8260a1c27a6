package sync

import (
	"encoding/binary"

	"sentinelfs/domain"
)

// MsgType tags the logical message kind carried by a frame's decrypted
// plaintext (spec.md 4.5.2, 6.2). The wire framing migrates away from the
// source's pipe-delimited text protocol (spec.md 9's redesign flag) to a
// length-prefixed binary envelope with an explicit version byte, while
// keeping the same message semantics and type tags.
type MsgType byte

const (
	MsgUpdateAvailable MsgType = iota + 1
	MsgRequestDelta
	MsgDeltaData
	MsgRequestFile
	MsgFileData
	MsgDeleteFile
)

// protocolVersion is bumped whenever the envelope or a payload's binary
// layout changes incompatibly.
const protocolVersion byte = 1

const (
	maxPayloadSize = 100 * 1024 * 1024
	maxTotalChunks = 10_000
)

// Envelope is the on-wire frame: version, type tag, then chunk-indexing
// header (unused fields are zero for non-chunked messages), then the
// opaque payload (spec.md 6.2's delta header layout, generalized to every
// message kind so the receiver's dispatch is uniform).
type Envelope struct {
	Version     byte
	Type        MsgType
	ChunkIndex  uint32
	TotalChunks uint32
	Payload     []byte
}

// Write serializes e to its binary wire form.
func (e Envelope) Write() []byte {
	out := make([]byte, 2+4+4+4+len(e.Payload))
	out[0] = e.Version
	out[1] = byte(e.Type)
	binary.LittleEndian.PutUint32(out[2:6], uint32(len(e.Payload)))
	binary.LittleEndian.PutUint32(out[6:10], e.ChunkIndex)
	binary.LittleEndian.PutUint32(out[10:14], e.TotalChunks)
	copy(out[14:], e.Payload)
	return out
}

// ReadEnvelope parses buf into an Envelope, enforcing spec.md 6.2's
// sanity bounds so a corrupt or hostile peer cannot force an unbounded
// allocation.
func ReadEnvelope(buf []byte) (Envelope, error) {
	if len(buf) < 14 {
		return Envelope{}, errBadCompressedFormat("envelope shorter than header")
	}
	payloadSize := binary.LittleEndian.Uint32(buf[2:6])
	chunkIndex := binary.LittleEndian.Uint32(buf[6:10])
	totalChunks := binary.LittleEndian.Uint32(buf[10:14])

	if payloadSize > maxPayloadSize {
		return Envelope{}, errBadCompressedFormat("payload_size exceeds sanity limit")
	}
	if totalChunks > maxTotalChunks {
		return Envelope{}, errBadCompressedFormat("total_chunks exceeds sanity limit")
	}
	if totalChunks > 0 && chunkIndex >= totalChunks {
		return Envelope{}, errBadCompressedFormat("chunk_index out of range")
	}
	if uint32(len(buf)-14) < payloadSize {
		return Envelope{}, errBadCompressedFormat("truncated payload")
	}

	return Envelope{
		Version:     buf[0],
		Type:        MsgType(buf[1]),
		ChunkIndex:  chunkIndex,
		TotalChunks: totalChunks,
		Payload:     buf[14 : 14+payloadSize],
	}, nil
}

func writeString(s string) []byte {
	b := make([]byte, 4+len(s))
	binary.LittleEndian.PutUint32(b[:4], uint32(len(s)))
	copy(b[4:], s)
	return b
}

func readString(buf []byte) (s string, rest []byte, ok bool) {
	if len(buf) < 4 {
		return "", nil, false
	}
	n := binary.LittleEndian.Uint32(buf[:4])
	if uint32(len(buf)-4) < n {
		return "", nil, false
	}
	return string(buf[4 : 4+n]), buf[4+n:], true
}

// UpdateAvailable announces a path's new content hash and vector clock.
type UpdateAvailable struct {
	RelPath     string
	Hash        string
	Size        uint64
	VectorClock domain.VectorClock
}

func (m UpdateAvailable) Write() []byte {
	var out []byte
	out = append(out, writeString(m.RelPath)...)
	out = append(out, writeString(m.Hash)...)
	sizeBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(sizeBuf, m.Size)
	out = append(out, sizeBuf...)
	out = append(out, writeString(m.VectorClock.Serialize())...)
	return out
}

func ParseUpdateAvailable(buf []byte) (UpdateAvailable, bool) {
	relPath, rest, ok := readString(buf)
	if !ok {
		return UpdateAvailable{}, false
	}
	hash, rest, ok := readString(rest)
	if !ok {
		return UpdateAvailable{}, false
	}
	if len(rest) < 8 {
		return UpdateAvailable{}, false
	}
	size := binary.LittleEndian.Uint64(rest[:8])
	rest = rest[8:]
	vc, _, ok := readString(rest)
	if !ok {
		return UpdateAvailable{}, false
	}
	return UpdateAvailable{RelPath: relPath, Hash: hash, Size: size, VectorClock: domain.ParseVectorClock(vc)}, true
}

// RequestDelta carries the requester's rolling-hash signature of its
// current local copy (empty when that copy is an empty file; with no local
// copy at all the requester sends RequestFile instead).
type RequestDelta struct {
	RelPath   string
	Signature []BlockSignature
}

func (m RequestDelta) Write() []byte {
	var out []byte
	out = append(out, writeString(m.RelPath)...)
	countBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(countBuf, uint32(len(m.Signature)))
	out = append(out, countBuf...)
	for _, s := range m.Signature {
		entry := make([]byte, 4+4+32)
		binary.LittleEndian.PutUint32(entry[0:4], uint32(s.BlockIndex))
		binary.LittleEndian.PutUint32(entry[4:8], s.Weak)
		copy(entry[8:], s.Strong[:])
		out = append(out, entry...)
	}
	return out
}

func ParseRequestDelta(buf []byte) (RequestDelta, bool) {
	relPath, rest, ok := readString(buf)
	if !ok {
		return RequestDelta{}, false
	}
	if len(rest) < 4 {
		return RequestDelta{}, false
	}
	count := binary.LittleEndian.Uint32(rest[:4])
	rest = rest[4:]
	sig := make([]BlockSignature, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(rest) < 40 {
			return RequestDelta{}, false
		}
		var s BlockSignature
		s.BlockIndex = int(binary.LittleEndian.Uint32(rest[0:4]))
		s.Weak = binary.LittleEndian.Uint32(rest[4:8])
		copy(s.Strong[:], rest[8:40])
		sig = append(sig, s)
		rest = rest[40:]
	}
	return RequestDelta{RelPath: relPath, Signature: sig}, true
}

// RequestFile asks for a full-file transfer, used when the requester has
// no local copy at all.
type RequestFile struct {
	RelPath string
}

func (m RequestFile) Write() []byte { return writeString(m.RelPath) }

func ParseRequestFile(buf []byte) (RequestFile, bool) {
	relPath, _, ok := readString(buf)
	return RequestFile{RelPath: relPath}, ok
}

// DeleteFile announces that a path was removed.
type DeleteFile struct {
	RelPath     string
	VectorClock domain.VectorClock
}

func (m DeleteFile) Write() []byte {
	var out []byte
	out = append(out, writeString(m.RelPath)...)
	out = append(out, writeString(m.VectorClock.Serialize())...)
	return out
}

// ChunkPayload is the payload shape shared by DELTA_DATA and FILE_DATA:
// the path the chunk belongs to plus this chunk's raw bytes. Chunk
// ordering and count live in the envelope header, not here.
type ChunkPayload struct {
	RelPath string
	Data    []byte
}

func (m ChunkPayload) Write() []byte {
	var out []byte
	out = append(out, writeString(m.RelPath)...)
	out = append(out, m.Data...)
	return out
}

func ParseChunkPayload(buf []byte) (ChunkPayload, bool) {
	relPath, rest, ok := readString(buf)
	if !ok {
		return ChunkPayload{}, false
	}
	return ChunkPayload{RelPath: relPath, Data: rest}, true
}

func ParseDeleteFile(buf []byte) (DeleteFile, bool) {
	relPath, rest, ok := readString(buf)
	if !ok {
		return DeleteFile{}, false
	}
	vc, _, ok := readString(rest)
	if !ok {
		return DeleteFile{}, false
	}
	return DeleteFile{RelPath: relPath, VectorClock: domain.ParseVectorClock(vc)}, true
}
