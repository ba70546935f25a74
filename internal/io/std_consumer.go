package io

import (
	"sync"

	"github.com/golang/glog"
)

// Consumer drains work units until the channel closes.
type Consumer interface {
	Consume(work chan *WorkUnit, results chan TileResult, errchan chan error, wg *sync.WaitGroup)
}

// StandardConsumer runs one conversion per work unit on its own goroutine.
// A failing root tile is reported on the error channel and the consumer keeps
// going: conversion is all-or-nothing per root tile, never per dataset.
type StandardConsumer struct {
	converter TileConverter
}

func NewStandardConsumer(converter TileConverter) *StandardConsumer {
	return &StandardConsumer{converter: converter}
}

func (c *StandardConsumer) Consume(work chan *WorkUnit, results chan TileResult, errchan chan error, wg *sync.WaitGroup) {
	for {
		unit, ok := <-work
		if !ok {
			break
		}

		result, err := c.converter.ConvertTile(unit)
		if err != nil {
			glog.Warningf("tile %s failed: %v", unit.TileName, err)
			errchan <- err
			continue
		}
		results <- result
	}

	wg.Done()
}
