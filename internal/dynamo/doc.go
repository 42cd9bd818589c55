// Package dynamo provides core primitives for controlled dynamical systems.
//
// The package defines the fundamental types shared by the certification
// pipeline:
//
//   - [State]: vector representing system state
//   - [System]: interface for controlled ODEs (dX/dt = f(X, u, t))
//   - [Controller]: feedback controller interface
//   - [Oracle]: ground-truth derivative sampler used by the active learner
//
// # Thread Safety
//
// States and systems are not synchronized. Batch evaluation over independent
// indices can use [ParallelFor], which partitions work into disjoint chunks.
package dynamo
