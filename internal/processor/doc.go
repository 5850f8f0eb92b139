// Package processor drives a single queue item through the external
// inference service.
//
// A run always leaves the item in a terminal-for-the-pipeline state:
// completed when an output was produced (genuine or fallback), failed when
// the source image could not be resolved. Inference failures are absorbed by
// the fallback policy, which copies the unmodified source image to the
// processed-output area and flags the item as a fallback result.
package processor
