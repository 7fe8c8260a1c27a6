// Package bandwidth implements the token-bucket limiter, LEDBAT-style
// congestion control, and transfer priority queue of spec.md 4.4. The
// token-bucket request()/try() API is shaped after golang.org/x/time/rate
// (pulled in for its Limiter's refill-and-wait idiom) but reimplemented
// directly: spec.md's try() returns a partial grant (min(n, floor(tokens)))
// rather than rate.Limiter's boolean AllowN, so the refill math is spec.md
// 4.4 verbatim rather than a thin rate.Limiter wrapper.
package bandwidth

import "sentinelfs/sferr"

const component = "bandwidth"

func errLimitExceeded(peerID string) error {
	return sferr.New(sferr.CodeBandwidthExceeded, component, "bandwidth limit exceeded").WithDetail("peer_id", peerID)
}
