package sync

import (
	"crypto/sha256"
	"encoding/binary"
)

// DeltaOp is one instruction in a delta: either copy a block the receiver
// already has (by index into the receiver's prior signature), or insert
// literal bytes the sender's new content introduced.
type DeltaOp struct {
	CopyBlockIndex int // >= 0 for a copy op
	Literal        []byte
	IsCopy         bool
}

// Delta is an ordered instruction list that reconstructs new content from
// a receiver's previously known blocks plus literal insertions.
type Delta struct {
	BlockSize int
	Ops       []DeltaOp
}

type sigEntry struct {
	index  int
	strong [32]byte
}

// ComputeDelta compares newData against remoteSig (the receiver's last
// known block signature for this path) and returns the instruction list
// to transform the receiver's content into newData (spec.md 4.5.2's
// sender-side delta generation: sliding window, incremental weak-hash
// computation, weak-hash-keyed candidate lookup disambiguated by strong
// hash).
func ComputeDelta(newData []byte, remoteSig []BlockSignature, blockSize int) Delta {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	byWeak := make(map[uint32][]sigEntry, len(remoteSig))
	for _, s := range remoteSig {
		byWeak[s.Weak] = append(byWeak[s.Weak], sigEntry{index: s.BlockIndex, strong: s.Strong})
	}

	d := Delta{BlockSize: blockSize}
	n := len(newData)
	if n == 0 {
		return d
	}

	var literal []byte
	flushLiteral := func() {
		if len(literal) > 0 {
			d.Ops = append(d.Ops, DeltaOp{Literal: literal})
			literal = nil
		}
	}

	pos := 0
	windowLen := blockSize
	if windowLen > n {
		windowLen = n
	}
	weak, a, b := weakChecksum(newData[pos : pos+windowLen])

	for pos < n {
		end := pos + windowLen
		if end > n {
			end = n
			windowLen = end - pos
			weak, a, b = weakChecksum(newData[pos:end])
		}

		if candidates, ok := byWeak[weak]; ok {
			window := newData[pos:end]
			strong := sha256.Sum256(window)
			matched := -1
			for _, c := range candidates {
				if c.strong == strong {
					matched = c.index
					break
				}
			}
			if matched >= 0 {
				flushLiteral()
				d.Ops = append(d.Ops, DeltaOp{IsCopy: true, CopyBlockIndex: matched})
				pos = end
				if pos >= n {
					break
				}
				windowLen = blockSize
				if pos+windowLen > n {
					windowLen = n - pos
				}
				weak, a, b = weakChecksum(newData[pos : pos+windowLen])
				continue
			}
		}

		literal = append(literal, newData[pos])
		if end < n && windowLen == blockSize {
			weak, a, b = rollWeakChecksum(a, b, windowLen, newData[pos], newData[end])
		}
		pos++
	}
	flushLiteral()

	return d
}

// SerializeDelta flattens d's ops into a byte stream for transport (one
// tag byte per op: 1 = copy block, 0 = literal run).
func SerializeDelta(d Delta) []byte {
	var out []byte
	for _, op := range d.Ops {
		if op.IsCopy {
			entry := make([]byte, 1+4)
			entry[0] = 1
			binary.LittleEndian.PutUint32(entry[1:], uint32(op.CopyBlockIndex))
			out = append(out, entry...)
			continue
		}
		header := make([]byte, 1+4)
		header[0] = 0
		binary.LittleEndian.PutUint32(header[1:], uint32(len(op.Literal)))
		out = append(out, header...)
		out = append(out, op.Literal...)
	}
	return out
}

// ParseDelta reverses SerializeDelta.
func ParseDelta(buf []byte, blockSize int) (Delta, bool) {
	d := Delta{BlockSize: blockSize}
	for len(buf) > 0 {
		if len(buf) < 5 {
			return Delta{}, false
		}
		tag := buf[0]
		n := binary.LittleEndian.Uint32(buf[1:5])
		buf = buf[5:]
		if tag == 1 {
			d.Ops = append(d.Ops, DeltaOp{IsCopy: true, CopyBlockIndex: int(n)})
			continue
		}
		if uint32(len(buf)) < n {
			return Delta{}, false
		}
		d.Ops = append(d.Ops, DeltaOp{Literal: append([]byte(nil), buf[:n]...)})
		buf = buf[n:]
	}
	return d, true
}

// ApplyDelta reconstructs content by replaying d's operations against the
// receiver's prior blocks (oldBlocks, indexed as in the signature that was
// sent to the sender).
func ApplyDelta(d Delta, oldBlocks [][]byte) []byte {
	var out []byte
	for _, op := range d.Ops {
		if op.IsCopy {
			if op.CopyBlockIndex >= 0 && op.CopyBlockIndex < len(oldBlocks) {
				out = append(out, oldBlocks[op.CopyBlockIndex]...)
			}
			continue
		}
		out = append(out, op.Literal...)
	}
	return out
}
