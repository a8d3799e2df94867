// Package tasks drives acquisition runs: download music, move it into the library, get the
// catalog to index it, then rebuild the source playlist from catalog songs.
//
// # Stages
//
// A run moves through [Received], then the working stages of its [Mode], and ends in [Completed]
// or [Failed]:
//
//  1. [Downloading] : runs the configured downloader with the reference
//  2. [Transferring] : inventories the download directory, runs the transfer command, prunes empty directories
//  3. [Rescanning] : starts a catalog scan (REST or admin command) and optionally waits for it
//  4. [Resolving] : reads the source playlist and maps each title to a catalog song via [Resolver]
//  5. [PlaylistCreating] : writes the resolved ids with [Materializer]
//
// The first failing stage ends the run with a [*StageError]; nothing after it runs. Tracks without
// a catalog match never fail a run. They are carried in [RunResult] and reported.
//
// # Progress Reporting
//
// [Acquisition.Run] emits [ProgressUpdate] values on an optional channel. Sends never block; a
// slow consumer misses updates rather than stalling the run.
//
// # Concurrency
//
// A run is sequential. Runs that share a download directory or target playlist are serialized by
// a [KeyedLock]; unrelated runs may proceed in parallel.
package tasks
