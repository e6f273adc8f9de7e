// Package utils holds small, allocation-conscious data structures shared
// across the alignment pipeline: interned strings (Symbol), a linear
// key/value list for structs with few dynamic fields (SmallMap), and a
// generic string/string record type (StringMap) used while parsing
// reference metadata and read-group descriptors.
package utils
