package io

import "sync"

// Producer enumerates the root tiles of a dataset into a work channel.
type Producer interface {
	Produce(work chan *WorkUnit, wg *sync.WaitGroup)
}
