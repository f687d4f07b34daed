// Package ir defines the data model shared by every stage of uam.
//
// The front end describes a program through a ProgramInfo: which predefined
// variable slots each stage reads and writes, plus stage flags such as the
// depth layout qualifier or the compute workgroup size. The semantic mapper
// turns that description into an IOMap, the ordered list of semantic
// bindings the IR builder declares.
//
// # Slot Spaces
//
// Slots are numbered in three independent spaces:
//   - VertAttrib: vertex shader input attributes
//   - VaryingSlot: values passed between adjacent pipeline stages
//   - FragResult: fragment shader outputs
//
// Ascending numeric order inside a space is the canonical enumeration order
// used by every mapping pass.
//
// # Translation Pipeline
//
//	front end → ProgramInfo → IOMap → IR tokens → machine code → containers
package ir
