// Package upload implements the resumable upload protocol engine for
// mobile-sensor measurements and their attachments.
//
// A measurement is identified by (deviceId, measurementId); an attachment
// belongs to a measurement and is additionally identified by attachmentId.
// Clients upload either kind in three steps:
//
//  1. Pre-request: POST metadata describing the upload (device, application,
//     measurement or attachment details) and the total byte size in the
//     x-upload-content-length header. The engine validates the metadata,
//     checks for a conflicting object already in durable storage, binds a
//     fresh session, and replies with a Location header carrying the
//     session id.
//  2. Chunk: PUT bytes against that location with a Content-Range header.
//     The engine appends them to the in-progress upload and replies 308
//     with the next expected offset, or 201 once the upload is complete.
//  3. Status: PUT an empty body with Content-Range: bytes */N at any time
//     to learn how many bytes the server already holds for this upload.
//
// The package exposes this as two handler methods on UploadEngine,
// PreRequest and ChunkOrStatus (which dispatches to chunk or status
// handling based on whether the request body is empty), that a caller
// wires to whatever router it uses. Authentication is resolved by an
// Authenticator supplied at construction time.
package upload
