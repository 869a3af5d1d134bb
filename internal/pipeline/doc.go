// Package pipeline runs a producer pool and a consumer pool connected by a
// bounded buffer.
//
// # Data Flow
//
// Producers put [Pair] items into a [buffer.Buffer]; consumers take them and
// compute the product. Producers block while the buffer is full and
// consumers block while it is empty, so the slower stage paces the faster
// one. A capacity of one turns the buffer into a strict hand-off slot.
//
// # Shutdown
//
// The [Runner] joins every producer first, then closes the buffer. Consumers
// keep draining the remaining items and stop when they see end-of-stream.
// No stage relies on timing to know when the other one is done.
//
// # Usage
//
//	sum, err := pipeline.Run(ctx, pipeline.Config{
//	    Capacity:         10,
//	    Producers:        4,
//	    Consumers:        4,
//	    ItemsPerProducer: 100,
//	    MaxValue:         10,
//	}, pipeline.WithLogger(logger))
//	if err == nil && !sum.Balanced() {
//	    // items were lost or duplicated
//	}
package pipeline
