// Package health implements per-peer probe metrics, scoring, and
// auto-remesh decisions (spec.md 4.3). No direct teacher analogue exists
// in the original tunnel code; the per-peer rolling-metrics struct shape
// is grounded on go-ethereum's downloader peer-set reputation tracking
// (other_examples/9d2d5cf8_..._downloader-peer.go.go), adapted to the
// teacher's mutex-guarded-struct-plus-constructor idiom.
package health

import "sentinelfs/sferr"

const component = "health"

func errUnknownPeer(peerID string) error {
	return sferr.New(sferr.CodeUnknownPeer, component, "peer not tracked").WithDetail("peer_id", peerID)
}
