package metrics

import (
	"time"

	"github.com/fbksd/fbksd-server/pkg/queue"
	"github.com/fbksd/fbksd-server/pkg/registry"
	"github.com/fbksd/fbksd-server/pkg/types"
)

// Collector periodically samples the registry and queue into the
// gauge metrics defined in metrics.go. It is optional: the consumer and RPC server
// start one if a metrics port is configured, and nothing else depends
// on its output.
type Collector struct {
	reg    *registry.Registry
	q      *queue.Queue
	stopCh chan struct{}
}

func NewCollector(reg *registry.Registry, q *queue.Queue) *Collector {
	return &Collector{reg: reg, q: q, stopCh: make(chan struct{})}
}

func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectTechniques()
	c.collectMail()
}

func (c *Collector) collectTechniques() {
	ids, err := c.reg.ListTechniqueIDs()
	if err != nil {
		return
	}
	counts := map[types.TechniqueKind]int{types.KindDenoiser: 0, types.KindSampler: 0}
	for _, id := range ids {
		t, err := c.reg.GetTechnique(id)
		if err != nil {
			continue
		}
		counts[t.Kind]++
	}
	for kind, count := range counts {
		TechniquesTotal.WithLabelValues(string(kind)).Set(float64(count))
	}
}

func (c *Collector) collectMail() {
	m, err := c.q.PeekMail()
	if err != nil {
		return
	}
	if m == nil {
		MailQueueDepth.Set(0)
		return
	}
	MailQueueDepth.Set(1)
}
