// Package hrtree provides a persistent, disk-backed R-tree over axis-aligned
// hyperrectangles.
//
// A Store keeps every tree node as a fixed-size record in a single file and
// reads nodes through a small direct-mapped cache, so the working set does
// not have to fit in memory. Every call reports how many records it read or
// wrote.
//
// # Quick Start
//
//	st, err := hrtree.Create("cities.hrt", hrtree.DefaultConfig(2))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
//
//	_ = st.Insert(7, []float64{13.4, 52.5}, []float64{0, 0})
//	_ = st.Insert(9, []float64{2.3, 48.8}, []float64{0.1, 0.1})
//
//	// Objects lying fully inside the query box.
//	inside, _ := st.Search([]float64{0, 40}, []float64{20, 20})
//
//	// The two objects nearest to a point.
//	near, _ := st.KNN(2, []float64{10, 50})
//	fmt.Println(len(inside), near[0].ID, st.LastIOCount())
//
// # Deletion
//
// Erase only tombstones an object. Once more than Config.EraseThreshold
// objects are tombstoned the tree is rebuilt from the survivors and the file
// shrinks. Re-inserting an erased id forces the rebuild early.
//
// # Backups
//
// Backup streams a compressed, checksummed copy of the file to any
// blobstore.BlobStore (local directory, S3, MinIO); Restore writes it back to
// a new path:
//
//	bs := blobstore.NewLocalStore("/backups")
//	_ = st.Backup(ctx, bs, "cities.hrtb")
//	_ = hrtree.Restore(ctx, bs, "cities.hrtb", "restored.hrt")
//
// # Concurrency
//
// A store file has a single owner. Create and Open take an exclusive lock on
// the file and fail with ErrLocked while another Store holds it.
package hrtree
