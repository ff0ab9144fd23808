package internal

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"inet.af/netaddr"
)

var _ Evaluator = (*CachedEvaluator)(nil)

// flowKey holds every field of a packet view that a rule can read.
type flowKey struct {
	ipv4     bool
	tcp      bool
	udp      bool
	src, dst netaddr.IP
	sport    Port
	dport    Port
}

func newFlowKey(v PacketView) flowKey {
	k := flowKey{
		ipv4: v.HasIPv4Header(),
		tcp:  v.HasTCPHeader(),
		udp:  v.HasUDPHeader(),
	}
	if k.ipv4 {
		k.src, k.dst = v.SourceAddress(), v.DestinationAddress()
	}
	if k.tcp || k.udp {
		k.sport, k.dport = v.SourcePort(), v.DestinationPort()
	}
	return k
}

// CachedEvaluator remembers the verdicts of an Evaluator per flow. Packets of
// the same flow get the same rule as the wrapped evaluator would return,
// including "no match". The wrapped evaluator must not change afterwards.
type CachedEvaluator struct {
	next   Evaluator
	cacher *lru.Cache[flowKey, *Rule]
}

// NewCachedEvaluator creates a CachedEvaluator holding at most size flows.
func NewCachedEvaluator(next Evaluator, size int) (*CachedEvaluator, error) {
	cacher, err := lru.New[flowKey, *Rule](size)
	if err != nil {
		return nil, fmt.Errorf("create evaluation cache: %w", err)
	}
	return &CachedEvaluator{next: next, cacher: cacher}, nil
}

func (c *CachedEvaluator) Evaluate(v PacketView) *Rule {
	k := newFlowKey(v)
	if r, ok := c.cacher.Get(k); ok {
		return r
	}
	r := c.next.Evaluate(v)
	c.cacher.Add(k, r)
	return r
}

// Len returns the number of cached flows.
func (c *CachedEvaluator) Len() int { return c.cacher.Len() }
