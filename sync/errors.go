// Package sync implements the local change pipeline, delta protocol state
// machine, rolling-hash signatures, chunked transfer, compression, and
// conflict resolution of spec.md 4.5. No teacher analogue exists for this
// domain; it is grounded on original_source/SentinelFS/core/sync/* and
// core/utils/{PathValidator,Compression} (see DESIGN.md), expressed in
// the teacher's struct+mutex+constructor concurrency idiom.
package sync

import "sentinelfs/sferr"

const component = "sync"

func errPathEscapesRoot(path string) error {
	return sferr.New(sferr.CodeInvalidConfig, component, "path escapes watch root").WithDetail("path", path)
}

func errConflict(path string) error {
	return sferr.New(sferr.CodeConflict, component, "concurrent modification detected").WithDetail("path", path)
}

func errEmptyRemote(path string) error {
	return sferr.New(sferr.CodeResolveEmptyRemote, component, "remote content is empty").WithDetail("path", path)
}

func errLocalMissing(path string) error {
	return sferr.New(sferr.CodeResolveLocalMissing, component, "local file missing during resolve").WithDetail("path", path)
}

func errResolveWriteFailed(path string, cause error) error {
	return sferr.Wrap(sferr.CodeResolveWriteFailed, component, "failed writing resolved content", cause).WithDetail("path", path)
}

func errDeltaGenFailed(path string, cause error) error {
	return sferr.Wrap(sferr.CodeDeltaGenFailed, component, "delta generation failed", cause).WithDetail("path", path)
}

func errBadCompressedFormat(reason string) error {
	return sferr.New(sferr.CodeFileCorrupted, component, "malformed compressed payload: "+reason)
}

func errUnexpectedChunk(path string) error {
	return sferr.New(sferr.CodeSyncInProgress, component, "chunk received for a path with no in-flight transfer").WithDetail("path", path)
}
