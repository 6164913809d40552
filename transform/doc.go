// Package transform provides ready-made Transformer implementations for the
// batch mutation pipeline.
//
// Sway is a continuous transform animator that displaces instances around a
// captured rest pose with a configurable waveform, distance falloff and wind
// blending. It doubles as the reference for writing custom transformers:
// dirty-flag throttling, baseline capture in OnHandleIssued, pure snapshot
// reads in ProcessChunk and cycle statistics committed in OnRequestComplete.
package transform
