// Package memscan is a low-level package that provides methods to search
// and edit the memory of another process.
//
// memscan implements all core functionality including:
// * typed value encoding and decoding
// * walking the committed, readable regions of a process
// * scanning regions for a value and progressively narrowing candidates
// * reading, modifying and freezing values at candidate addresses
//
package memscan
