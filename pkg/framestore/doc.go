// Package framestore reads and writes depth recordings in a custom format.
package framestore

// Custom format for storing sequences of compressed depth frames.
// Requirements.
//   1. Frames must be appendable as they arrive from the sensor,
//      without knowing the total count up front.
//   2. Playback must be able to consume one frame at a time without
//      materializing the whole recording in memory.
//   3. Each frame is one independent compressed block, never diffed
//      or windowed against its neighbors.
//
//
// <session>.zst: single file, all integers little-endian.
//   frameCount uint64 // written as 0 at creation, patched on finalize.
//   records    []record
//
// record {
//   width       uint32
//   height      uint32
//   payloadSize uint64
//   timestamp   uint64 // ordinal frame index, not wall-clock.
//   payload     [payloadSize]byte // one zstd block with checksum.
// }
//
// Raw depth samples are row-major uint16 millimeters,
// width*height*2 bytes per frame before compression.
//
// There is no resync marker between records. A file whose header
// reports zero frames but is larger than the 8 byte header was left
// behind by a writer that never finalized; Scan can recover it.
