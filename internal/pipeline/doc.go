// Package pipeline defines the stage contract and shared per-key machinery.
//
// Stages run strictly sequentially within one invocation; only the per-key
// (instrument x year) work inside a stage fans out, bounded by a worker
// pool. Failures are isolated to the key that produced them and surface in
// the stage Report; a stage with zero successful keys and at least one
// attempted key is a stage-level failure.
package pipeline
