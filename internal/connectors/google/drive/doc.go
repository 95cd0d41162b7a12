// Package drive implements a Google Drive connector.
//
// My Drive ("my-drive") and each shared drive are resources. Files are
// synced as note activities keyed by file ID, which Drive never reuses:
//
//	google-drive:file:{fileID}
//
// An initial pass first captures a changes start token, then walks
// files.list within the sync window. The last page checkpoints on the
// captured token so edits made mid-pass are replayed. Incremental passes
// walk changes.list; removed and trashed files arrive as deleted items.
//
// When export_content is on, Google Docs and Slides are exported as plain
// text, Sheets as CSV, and small text files are downloaded. The text
// replaces the description note on every sync.
//
// Push notifications use changes.watch channels and trigger incremental
// passes.
package drive
