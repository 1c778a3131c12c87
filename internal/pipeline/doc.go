// Package pipeline drives a batch: it discovers sources, expands them into
// (file, preset) units, and runs probe, pre-steps, planning, graph building
// and encoding for each unit on a bounded worker pool. Unit failures are
// recorded in the Summary and never abort the batch.
package pipeline
