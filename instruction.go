package accel

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

type instructionKind int

const (
	instPTX instructionKind = iota
	instCubin
	instPTXFile
	instCubinFile
)

// Instruction is an opaque kernel image waiting to be loaded into a
// context: PTX text or a compiled cubin, either in memory or on disk.
// It carries no driver resources until handed to LoadModule.
type Instruction struct {
	kind instructionKind
	text string
	blob []byte
	path string
}

// PTX wraps in-memory PTX assembly text.
func PTX(text string) Instruction { return Instruction{kind: instPTX, text: text} }

// Cubin wraps an in-memory compiled cubin image.
func Cubin(image []byte) Instruction { return Instruction{kind: instCubin, blob: image} }

// PTXFile refers to a PTX assembly file on disk.
func PTXFile(path string) Instruction { return Instruction{kind: instPTXFile, path: path} }

// CubinFile refers to a compiled cubin file on disk.
func CubinFile(path string) Instruction { return Instruction{kind: instCubinFile, path: path} }

// InstructionFromFile picks the representation from the file
// extension: ".ptx" for assembly text, ".cubin" for compiled images.
func InstructionFromFile(path string) (Instruction, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ptx":
		return PTXFile(path), nil
	case ".cubin":
		return CubinFile(path), nil
	default:
		return Instruction{}, errors.Errorf("cannot infer kernel image type from %q: expected a .ptx or .cubin extension", path)
	}
}

// image returns the in-memory byte image for the data-loading path, or
// ("", false) when the instruction names a file and must be loaded by
// path instead. PTX text gains the NUL terminator the loader requires.
func (i Instruction) image() ([]byte, bool) {
	switch i.kind {
	case instPTX:
		return append([]byte(i.text), 0), true
	case instCubin:
		return i.blob, true
	default:
		return nil, false
	}
}
