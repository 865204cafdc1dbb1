// Package simplenotes provides a note service with optional single-file
// attachments, backed by pluggable metadata repositories and blob stores.
//
// The Service decodes incoming request bodies (JSON or multipart/form-data),
// writes attachment blobs to an AttachmentStore and note records to a
// NoteRepository. Implementations of repositories (memory, Postgres,
// DynamoDB) and attachment stores (memory, filesystem, S3) live under
// subpackages.
//
// Consistency
//
// The two stores are never written transactionally. Operations are ordered so
// that a failure leaves an orphan blob rather than a note pointing at a
// missing blob: blobs are written before the metadata that references them,
// and old blobs are deleted before metadata stops referencing them. Blob
// cleanup failures are logged and reported through EventSink.BlobOrphaned but
// never fail the request.
//
// Concurrent updates to the same note are not serialized. The last patch to
// reach the repository wins, and a racing attachment replacement can orphan
// the loser's blob.
//
// Ownership
//
// Every operation takes an owner ID. The reference deployment uses a single
// fixed owner; callers with a real identity layer pass the authenticated
// principal instead.
package simplenotes
