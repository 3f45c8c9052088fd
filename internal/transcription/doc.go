// Package transcription manages the background transcription pipeline: a
// durable delayed job queue with exponential retry and dead-lettering, a
// fixed-size worker pool that drives each call's transcription state machine
// (pending -> processing -> completed|failed), and the Transcriber interface
// the workers execute. Jobs survive application restarts via a pluggable
// JobStore, and jobs interrupted mid-processing are recovered on startup.
package transcription
