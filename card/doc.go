// Package card defines the grid-card entity, its lifecycle state
// machine, the secure matrix generator, and the binary record codec
// shared by store implementations.
//
// A Card carries its secret code matrix. Callers outside the manager
// must treat loaded records as borrowed: clone before retaining
// metadata, and zero the codes buffer as soon as comparison is done.
package card
