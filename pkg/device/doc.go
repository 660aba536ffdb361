/*
Package device connects a byte-oriented port to typed messages.

A Driver decodes what the port reads and encodes what the application sends.
Open starts two goroutines locked to OS threads, so a port whose calls block
in native code does not hold up the scheduler: the reader decodes input and
broadcasts it to subscribers, the writer encodes queued outputs and writes
them, optionally paced to a frame rate.

	pad, err := device.Open[Press, Light](port, launchpad{}, device.Config{
		Name:      "pad",
		FrameRate: bucket.FrameRate(40),
	})
	if err != nil {
		return err
	}
	defer pad.Close()

Both goroutines share one lock around the driver, so a driver can keep
state, such as the last lit pads, without its own locking.
*/
package device
