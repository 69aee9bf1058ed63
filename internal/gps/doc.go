// Package gps interprets NMEA 0183 sentences from a u-blox receiver into a
// PositionState.
//
// RMC, GGA and GSA each own a subset of the state and only overwrite the
// fields they carry, under their own validity rule. A field that fails to
// parse stays at its last known good value. GSV is tracked for diagnostics
// only.
package gps
