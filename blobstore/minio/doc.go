// Package minio stores tree backups in MinIO or any other S3-compatible
// object store through the MinIO client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "backups", "trees/")
//	err = tree.Backup(ctx, store, "cities.hrtb")
//
// Uploads are streamed; a backup is visible under its name only after the
// writer is closed successfully.
package minio
