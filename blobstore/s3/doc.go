// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.NewStoreFromConfig(ctx, "my-bucket", "hrtree/backups",
//	    config.WithRegion("us-east-1"),
//	)
//
//	err = tree.Backup(ctx, store, "tree-2024-01-01.hrtb")
//
// # Features
//
//   - Range reads for streaming restores
//   - Streaming multipart uploads with CRC32C checksums
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
