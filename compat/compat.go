// Package compat is the core of compatd, a bridge that exposes a monitoring
// daemon through the legacy compat interfaces: a named pipe that accepts
// external commands and a pair of snapshot files describing every object and
// its state.
//
// Mechanism of Operation
//
// Command Channel
//
// The Channel owns a named pipe, usually called icinga.cmd. Writers open the
// pipe, write one command per line and close it. Each line looks like this:
//
//    [1700000000] SCHEDULE_SVC_CHECK;myhost;myservice;1700000100
//
// Lines that decode are submitted to the Dispatcher, which queues them
// without bound and executes them on a pool of workers. The channel never
// waits for a command to finish.
//
// Snapshots
//
// The Publisher writes status.dat and objects.cache every 15 seconds. Both
// files are written next to their final location under a .tmp suffix and then
// renamed into place, so readers always see a complete snapshot.
//
// Journal
//
// Everything that happens is reported as an Event to a Journaler. Nothing in
// this package logs directly.
package compat
