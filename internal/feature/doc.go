// Package feature projects smart-plug device features onto generic
// numeric controls.
//
// A device reports a tree of features (timers, offsets, target
// temperatures, ...) together with their live bounds. A Coordinator polls
// one device through a DeviceClient and fans every snapshot out to its
// listeners, one refresh at a time. Number entities listen to a
// coordinator and republish a single number-type feature as a
// NumberState with a value, bounds and a display mode.
//
// Writes go the other way: Number.SetValue checks the requested value
// against the bounds in the coordinator's current snapshot, truncates it
// to the device's integer granularity, forwards it through the
// coordinator and then requests an immediate refresh. The cached state is
// never updated optimistically; only a refresh changes it.
//
// # Phases
//
//	Uninitialized --first snapshot--> Synced
//	Synced/Stale --SetValue--> WriteInFlight
//	WriteInFlight --write ok, refresh ok--> Synced
//	WriteInFlight --write or refresh failed--> Stale
package feature
