// Package redisbus carries control events between bridges over Redis
// pub/sub.
//
// A Source subscribes to a channel and re-broadcasts decoded messages
// locally, so it can feed broadcast.Listen or bridge.Run like any other
// event source. A Publisher encodes values as JSON and publishes them; it
// satisfies bridge.Sink.
//
// Redis pub/sub is fire-and-forget. Messages published while no Source is
// subscribed are lost, and a slow local subscriber lags on the Source's
// ring exactly as it would on a broadcast.Channel.
package redisbus
