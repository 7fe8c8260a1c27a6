package sync

import (
	"time"

	"sentinelfs/domain"
)

// HandleRemoteEnvelope dispatches one decrypted peer message through the
// delta protocol state machine of spec.md 4.5.2.
func (e *Engine) HandleRemoteEnvelope(peerID string, env Envelope) error {
	switch env.Type {
	case MsgUpdateAvailable:
		ua, ok := ParseUpdateAvailable(env.Payload)
		if !ok {
			return errBadCompressedFormat("malformed UPDATE_AVAILABLE")
		}
		return e.onUpdateAvailable(peerID, ua)

	case MsgRequestDelta:
		rd, ok := ParseRequestDelta(env.Payload)
		if !ok {
			return errBadCompressedFormat("malformed REQUEST_DELTA")
		}
		return e.onRequestDelta(peerID, rd)

	case MsgDeltaData:
		cp, ok := ParseChunkPayload(env.Payload)
		if !ok {
			return errBadCompressedFormat("malformed DELTA_DATA")
		}
		return e.onChunk(peerID, cp.RelPath, env.ChunkIndex, env.TotalChunks, cp.Data, true)

	case MsgRequestFile:
		rf, ok := ParseRequestFile(env.Payload)
		if !ok {
			return errBadCompressedFormat("malformed REQUEST_FILE")
		}
		return e.onRequestFile(peerID, rf)

	case MsgFileData:
		cp, ok := ParseChunkPayload(env.Payload)
		if !ok {
			return errBadCompressedFormat("malformed FILE_DATA")
		}
		return e.onChunk(peerID, cp.RelPath, env.ChunkIndex, env.TotalChunks, cp.Data, false)

	case MsgDeleteFile:
		df, ok := ParseDeleteFile(env.Payload)
		if !ok {
			return errBadCompressedFormat("malformed DELETE_FILE")
		}
		return e.onDeleteFile(peerID, df)
	}
	return errBadCompressedFormat("unknown message type")
}

func (e *Engine) onUpdateAvailable(peerID string, ua UpdateAvailable) error {
	local, found, err := e.storage.GetFileMetadata(ua.RelPath)
	if err != nil {
		return err
	}

	if found && local.Hash == ua.Hash {
		return nil
	}

	conflict := found && DetectConflict(local.Hash, ua.Hash, local.VectorClock, ua.VectorClock)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !found {
		e.inflight[ua.RelPath] = &inFlightTransfer{state: stateAwaitingFull, remoteMeta: ua, originPeer: peerID}
		return e.network.Send(peerID, Envelope{Version: protocolVersion, Type: MsgRequestFile, Payload: RequestFile{RelPath: ua.RelPath}.Write()}.Write())
	}

	absPath, ok := ValidatePath(e.cfg.WatchRoot, ua.RelPath)
	if !ok {
		return errPathEscapesRoot(ua.RelPath)
	}
	localData, err := e.files.Read(absPath)
	if err != nil {
		return err
	}

	t := &inFlightTransfer{state: stateAwaitingDelta, remoteMeta: ua, originPeer: peerID}
	t.localBlocks = SplitBlocks(localData, e.cfg.BlockSize)
	t.isConflict = conflict
	t.localMeta = local
	e.inflight[ua.RelPath] = t

	sig := Signature(localData, e.cfg.BlockSize)
	return e.network.Send(peerID, Envelope{Version: protocolVersion, Type: MsgRequestDelta, Payload: RequestDelta{RelPath: ua.RelPath, Signature: sig}.Write()}.Write())
}

func (e *Engine) onRequestDelta(peerID string, rd RequestDelta) error {
	absPath, ok := ValidatePath(e.cfg.WatchRoot, rd.RelPath)
	if !ok {
		return errPathEscapesRoot(rd.RelPath)
	}

	// Keying on rd.Write() (RelPath plus the full signature, already
	// serialized deterministically for the wire) rather than RelPath
	// alone: two peers requesting the same path with different local
	// signatures must never share one computed delta.
	key := string(rd.Write())
	v, err, _ := e.deltaGroup.Do(key, func() (any, error) {
		data, err := e.files.Read(absPath)
		if err != nil {
			return nil, err
		}
		delta := ComputeDelta(data, rd.Signature, e.cfg.BlockSize)
		return SerializeDelta(delta), nil
	})
	if err != nil {
		return err
	}
	return e.sendChunked(peerID, rd.RelPath, v.([]byte), MsgDeltaData)
}

func (e *Engine) onRequestFile(peerID string, rf RequestFile) error {
	absPath, ok := ValidatePath(e.cfg.WatchRoot, rf.RelPath)
	if !ok {
		return errPathEscapesRoot(rf.RelPath)
	}
	data, err := e.files.Read(absPath)
	if err != nil {
		return err
	}
	return e.sendChunked(peerID, rf.RelPath, data, MsgFileData)
}

func (e *Engine) sendChunked(peerID, relPath string, data []byte, msgType MsgType) error {
	wrapped, err := WrapForTransfer(data)
	if err != nil {
		return err
	}
	chunks := SplitChunks(wrapped, e.cfg.MaxChunkBytes)
	total := len(chunks)
	for i, chunk := range chunks {
		env := Envelope{
			Version:     protocolVersion,
			Type:        msgType,
			ChunkIndex:  uint32(i),
			TotalChunks: uint32(total),
			Payload:     ChunkPayload{RelPath: relPath, Data: chunk}.Write(),
		}
		if err := e.network.Send(peerID, env.Write()); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) onChunk(peerID, relPath string, chunkIndex, totalChunks uint32, data []byte, isDelta bool) error {
	e.mu.Lock()
	t, ok := e.inflight[relPath]
	e.mu.Unlock()
	if !ok {
		return errUnexpectedChunk(relPath)
	}

	if chunkIndex == 0 {
		e.assembler.Begin(peerID, relPath, int(totalChunks))
	}
	complete, assembled := e.assembler.Put(peerID, relPath, int(chunkIndex), data)
	if !complete {
		return nil
	}

	wrapped, err := UnwrapTransfer(assembled)
	if err != nil {
		return err
	}

	var newContent []byte
	if isDelta {
		delta, ok := ParseDelta(wrapped, e.cfg.BlockSize)
		if !ok {
			return errDeltaGenFailed(relPath, errBadCompressedFormat("malformed delta stream"))
		}
		newContent = ApplyDelta(delta, t.localBlocks)
	} else {
		newContent = wrapped
	}

	return e.applyIncoming(relPath, t, newContent)
}

func (e *Engine) applyIncoming(relPath string, t *inFlightTransfer, newContent []byte) error {
	absPath, ok := ValidatePath(e.cfg.WatchRoot, relPath)
	if !ok {
		return errPathEscapesRoot(relPath)
	}

	// overwritten tracks whether the bytes now on disk actually became
	// remote's, so the stored metadata below never claims convergence
	// with a hash the local file doesn't have.
	overwritten := true
	if t.isConflict {
		strategy := e.cfg.DefaultStrategy
		c := &Conflict{
			Path:            relPath,
			LocalHash:       t.localMeta.Hash,
			RemoteHash:      t.remoteMeta.Hash,
			LocalTimestamp:  t.localMeta.MTimeMs,
			RemoteTimestamp: uint64(time.Now().UnixMilli()),
			LocalSize:       t.localMeta.Size,
			RemoteSize:      t.remoteMeta.Size,
			RemotePeerID:    t.originPeer,
			Strategy:        strategy,
		}
		if err := Resolve(c, absPath, newContent); err != nil {
			return err
		}
		overwritten = c.Overwritten
	} else {
		if _, err := e.files.Write(absPath, newContent); err != nil {
			return err
		}
	}

	e.ignoreL.Add(relPath)
	e.hashes.Invalidate(absPath)

	mergedClock := domain.Merge(t.localMeta.VectorClock, t.remoteMeta.VectorClock)
	meta := domain.FileMetadata{
		Path:        relPath,
		Hash:        t.localMeta.Hash,
		Size:        t.localMeta.Size,
		MTimeMs:     uint64(time.Now().UnixMilli()),
		VectorClock: mergedClock,
	}
	if overwritten {
		meta.Hash = t.remoteMeta.Hash
		meta.Size = t.remoteMeta.Size
	}
	if err := e.storage.UpsertFileMetadata(meta); err != nil {
		return err
	}

	e.mu.Lock()
	delete(e.inflight, relPath)
	e.mu.Unlock()
	return nil
}

func (e *Engine) onDeleteFile(peerID string, df DeleteFile) error {
	absPath, ok := ValidatePath(e.cfg.WatchRoot, df.RelPath)
	if !ok {
		return errPathEscapesRoot(df.RelPath)
	}
	_ = peerID

	local, found, err := e.storage.GetFileMetadata(df.RelPath)
	if err != nil {
		return err
	}
	mergedClock := df.VectorClock
	if found {
		mergedClock = domain.Merge(local.VectorClock, df.VectorClock)
	}

	if err := removeIfExists(absPath); err != nil {
		return err
	}
	e.ignoreL.Add(df.RelPath)

	meta := domain.FileMetadata{Path: df.RelPath, VectorClock: mergedClock, Tombstoned: true, MTimeMs: uint64(time.Now().UnixMilli())}
	return e.storage.UpsertFileMetadata(meta)
}
