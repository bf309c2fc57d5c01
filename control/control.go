// Package control contains the small signal blocks used to shape velocity commands: a PID for
// tracking a setpoint and a rate limiter that bounds acceleration between control cycles.
package control
