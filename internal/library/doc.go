// Package library inspects the download directory before its contents are handed to the transfer tool.
//
// [Scan] lists the audio files below a root and reads their tags, so a run can report what it is
// about to move. [PruneEmptyDirs] removes the directories a move-style transfer leaves behind.
// Failures are reported as [*FSError].
package library
