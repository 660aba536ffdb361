/*
Package streaming holds the event fan-out and bridging packages.

  - broadcast: a bounded ring where every subscriber sees every event sent
    after it subscribed, and slow subscribers skip ahead instead of
    blocking the sender
  - bridge: connects a broadcast source to a pipeline and a sink

Broadcast is lossy on purpose for slow readers. A subscriber that falls more
than the ring capacity behind gets a *broadcast.LaggedError carrying the
number of skipped events, then continues with the oldest retained one.
*/
package streaming
