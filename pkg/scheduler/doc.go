// Package scheduler bounds the interval chain to a random number of requests
// per day.
//
// A day-cycle starts with Initialize: a quota is drawn, the counter is reset,
// one request is made immediately and the interval chain takes over. Each
// tick performs one request until the counter reaches the quota. The tick
// that finds the quota spent ends the chain, and the scheduler then sleeps
// until a random instant of the next day before starting a fresh cycle.
//
// All waits are owned by Run and cancelled through its context. Nothing is
// left pending when a cycle ends or when the process shuts down.
package scheduler
