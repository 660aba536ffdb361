/*
Package bucket implements a token bucket used to pace device output.

Each frame sent to a device takes one token. Tokens refill at Rate per second
up to Burst, so a short flurry of changes goes out at once and a sustained
stream is held to the device's refresh rate:

	lim, err := bucket.New(bucket.FrameRate(40), 2)
	if err != nil {
		return err
	}
	if err := lim.Wait(ctx); err != nil {
		return err
	}
	write(frame)

Wait cancels its reservation when ctx ends, so an abandoned frame costs
nothing.
*/
package bucket
