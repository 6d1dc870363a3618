// Package pipeline fans features out to a bounded pool of workers, each
// calling a FeatureFitter, and reassembles the results by feature index so
// the output order never depends on scheduling.
//
// The only contract to implement is FeatureFitter (Fit).
package pipeline
