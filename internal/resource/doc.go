// Package resource limits the background work a store performs on behalf of
// its caller: backups and restores.
//
//   - Concurrency: a weighted semaphore bounds how many backup or restore
//     jobs run at once.
//   - IO: a token bucket limits the bytes per second those jobs read.
//
// All methods handle a nil Controller gracefully; they become no-ops.
//
//	rc := resource.NewController(resource.Config{
//	    MaxBackgroundJobs:  1,
//	    IOLimitBytesPerSec: 64 << 20,
//	})
//	if err := rc.AcquireBackground(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseBackground()
//	r := resource.NewRateLimitedReader(ctx, file, rc)
package resource
