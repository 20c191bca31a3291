// Package portfolio provides the services behind the portfolio administration
// backend: one CRUD service per table (profiles, projects, experiences,
// technologies, social networks, images) plus an image service that pairs
// every image row with an object in a blob store.
//
// Services never talk to a database or object store directly. They are
// constructed with a Table (see repo/memory and repo/postgres) and, for
// images, a BlobStore (see storage/memory, storage/fs and storage/s3), so the
// same code runs against in-memory fakes in tests and real backends in
// production.
//
// Consistency between image rows and blobs
//
// Creating or replacing an image is a sequence of independent remote calls.
// When a later step fails the service issues a best-effort compensating
// delete of the blob it just uploaded. A failed compensation is reported next
// to the original error, never instead of it. Blobs left behind this way are
// found and removed by the reconcile package.
package portfolio
