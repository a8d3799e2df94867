// Package models defines the domain entities shared by the sync pipeline.
//
// Value types passed between components:
//   - [Track] : a source-playlist entry, only its display title is kept
//   - [SourcePlaylist] : the ordered tracks of a streaming-service playlist
//   - [ResolvedTrack] : the outcome of looking a title up in the target catalog
//   - [Playlist] : a target-catalog playlist to create or replace
//
// Persistent entities implement [Model] and are stored through [Repository]:
//   - [Run] : one acquisition run with its final stage and resolution counts
package models
