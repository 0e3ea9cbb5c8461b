package publisher

import (
	"context"

	"pubharness/internal/metrics"
	"pubharness/pkg/messaging"
	"pubharness/pkg/middleware"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"
)

type inProcessPublisher struct {
	base
	clock   clock.WithTicker
	publish messaging.Handler
	seq     uint64
}

func newInProcessPublisher(cfg Config, o options) *inProcessPublisher {
	p := &inProcessPublisher{clock: o.clock}
	p.base.init(cfg)

	client := cfg.Client
	p.publish = messaging.Chain(func(ctx context.Context, env *messaging.MessageEnvelope) error {
		return client.Publish(env.Subject, env)
	}, middleware.PublisherTracing(), middleware.PublisherMetrics())
	return p
}

func (p *inProcessPublisher) Start() error {
	if err := p.begin(); err != nil {
		return err
	}
	ticker := p.clock.NewTicker(p.cfg.Interval)
	klog.InfoS("In-process publisher started", "publisher", p.cfg.PublisherID,
		"stream", p.cfg.StreamID, "function", p.cfg.Function.Name, "interval", p.cfg.Interval)
	go p.run(ticker)
	return nil
}

func (p *inProcessPublisher) run(ticker clock.Ticker) {
	defer p.finish()
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			klog.V(4).InfoS("In-process publisher stopped", "publisher", p.cfg.PublisherID)
			return
		case <-ticker.C():
			if p.cancelled() {
				return
			}
			if err := p.publishNext(); err != nil {
				p.fail(err)
				klog.ErrorS(err, "In-process publisher failed", "publisher", p.cfg.PublisherID)
				return
			}
		}
	}
}

// publishNext publishes one message. Only fatal errors are returned.
func (p *inProcessPublisher) publishNext() error {
	p.seq++
	env := messaging.NewEnvelope(p.cfg.StreamID, p.cfg.Function.Name, p.cfg.PublisherID, p.seq, p.cfg.Function.Message(p.seq))

	err := p.publish(p.ctx, env)
	if err == nil {
		p.notify(env.Id)
		return nil
	}

	fatal := IsFatal(err)
	metrics.DefaultPublisherMetrics().RecordPublishFailure(p.ctx, p.cfg.PublisherID, p.cfg.StreamID, fatal)
	if fatal {
		return errors.Wrapf(err, "publisher %s lost its connection", p.cfg.PublisherID)
	}
	klog.ErrorS(err, "Publish failed, retrying on next tick", "publisher", p.cfg.PublisherID, "sequence", p.seq)
	return nil
}
