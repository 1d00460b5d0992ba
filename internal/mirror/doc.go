// Package mirror copies a directory tree onto another with an update-only
// policy.
//
// Files are compared by modification time. A destination file is rewritten
// only when it is missing or strictly older than its source; the copy then
// takes the source permission bits and modification time, so a second run
// over an unchanged source writes nothing.
//
// Every failure is a *FileSystemError. Runs are not transactional: files
// copied before a failure stay in place.
package mirror
