// Package natsstream provides acquisition sources fed from NATS subjects.
//
// A producer publishes msgpack wire.ChunkMessage values on a chunk subject
// and wire.MarkerMessage values on a marker subject. ChunkSource buffers
// received chunks in a bounded inbox that drops the oldest chunk on
// overflow, and PullChunk copies whole frames out of it, keeping any
// remainder of a partially consumed chunk for the next pull. MarkerSource
// buffers markers the same way and never blocks.
//
// Both sources subscribe on Open and unsubscribe on Close, so they can be
// reopened for every acquisition session.
package natsstream
