// Package minio provides a blobstore.Store implementation using the MinIO
// client, for distributing archive images through self-hosted object storage.
//
// MinIO is a high-performance, S3-compatible object storage system. This
// package uses the official MinIO Go client library for compatibility with
// MinIO and other S3-compatible systems like Ceph, SeaweedFS, and Garage.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "my-bucket", "archives/")
//	err = codearc.Publish(ctx, store, "fleet/app.carc", "/var/cache/app.carc")
//
// # Features
//
//   - Range reads so loaders fetch only the pieces they need
//   - Streaming uploads for large archive images
//   - Works with any S3-compatible storage (Ceph, Garage, SeaweedFS)
//   - Air-gap friendly (no AWS dependencies required)
package minio
