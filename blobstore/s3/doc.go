// Package s3 provides an S3 implementation of the blobstore.Store interface
// for publishing and fetching archive images.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(s3.NewFromConfig(cfg), "my-bucket", "archives/")
//
//	err = arc.Publish(ctx, store, "app.arc")
//
// # Features
//
//   - Range reads so a loader can pull the header and directory without
//     downloading the whole image
//   - Multipart streaming uploads for large images
//   - CRC32C integrity checksums on whole-image puts
//   - PointerStore: an S3+DynamoDB store whose LATEST pointer advances
//     atomically, so concurrent publishers cannot clobber each other
package s3
