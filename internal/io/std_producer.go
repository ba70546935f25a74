package io

import (
	"sync"
)

// StandardProducer submits a pre-built list of work units. Dataset layout
// detection happens up front in the batch driver; the producer only feeds the
// pool and closes the channel when everything is submitted.
type StandardProducer struct {
	units []*WorkUnit
}

func NewStandardProducer(units []*WorkUnit) *StandardProducer {
	return &StandardProducer{units: units}
}

func (p *StandardProducer) Produce(work chan *WorkUnit, wg *sync.WaitGroup) {
	for _, unit := range p.units {
		work <- unit
	}
	close(work)
	wg.Done()
}
