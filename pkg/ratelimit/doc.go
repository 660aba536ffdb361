/*
Package ratelimit contains the token bucket used to pace device output.

  - bucket: token bucket with burst capacity, reservations and
    context-aware waits

Device writers use a bucket to cap frames per second:

	limiter, _ := bucket.New(bucket.FrameRate(44), 1)
	if err := limiter.Wait(ctx); err != nil {
		return err
	}
*/
package ratelimit
