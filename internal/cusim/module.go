package cusim

import (
	"bytes"
	"os"
	"regexp"
	"strings"
	"unsafe"

	"github.com/chiyanglin-AStar/rust-gpu-accel-framework/internal/cudriver"
)

// The simulator does not assemble PTX; it only recovers the metadata
// needed to honor the module/launch contract: entry-point names, their
// parameter arity, and whether the body traps.
var (
	reEntry = regexp.MustCompile(`\.entry\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	reParam = regexp.MustCompile(`\.param\b`)
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

func (s *Sim) ModuleLoadData(image []byte) (cudriver.Module, cudriver.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, res := s.currentCtx(); res != cudriver.Success {
		return 0, res
	}
	return s.loadImage(image)
}

func (s *Sim) ModuleLoad(path string) (cudriver.Module, cudriver.Result) {
	image, err := os.ReadFile(path)
	if err != nil {
		return 0, cudriver.ErrorNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, res := s.currentCtx(); res != cudriver.Success {
		return 0, res
	}
	return s.loadImage(image)
}

// loadImage accepts cubin (ELF) images opaquely and scans PTX text for
// entry points. Caller must hold s.mu.
func (s *Sim) loadImage(image []byte) (cudriver.Module, cudriver.Result) {
	image = bytes.TrimRight(image, "\x00")
	if len(image) == 0 {
		return 0, cudriver.ErrorInvalidImage
	}

	mod := cudriver.Module(s.handle())
	m := &simModule{entries: make(map[string]cudriver.Function)}

	if !bytes.HasPrefix(image, elfMagic) {
		// PTX text.
		src := string(image)
		if !strings.Contains(src, ".version") {
			return 0, cudriver.ErrorInvalidImage
		}
		for _, section := range splitEntries(src) {
			name, entry := section.name, section.body
			fn := cudriver.Function(s.handle())
			s.fns[fn] = &simEntry{
				name:   name,
				params: countParams(entry),
				traps:  strings.Contains(entry, "trap"),
			}
			m.entries[name] = fn
		}
	}
	// ELF/cubin images load fine but expose no scannable entry points;
	// function lookup on them reports not-found.

	s.mods[mod] = m
	return mod, cudriver.Success
}

type entrySection struct {
	name string
	body string // declaration and body text up to the next entry
}

// splitEntries slices the PTX source into one section per .entry, so
// parameter counting and trap detection stay local to their kernel.
func splitEntries(src string) []entrySection {
	matches := reEntry.FindAllStringSubmatchIndex(src, -1)
	sections := make([]entrySection, 0, len(matches))
	for i, match := range matches {
		end := len(src)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		sections = append(sections, entrySection{
			name: src[match[2]:match[3]],
			body: src[match[1]:end],
		})
	}
	return sections
}

// countParams counts .param declarations in the entry's signature, i.e.
// before the opening brace of its body.
func countParams(entry string) int {
	sig := entry
	if brace := strings.Index(entry, "{"); brace >= 0 {
		sig = entry[:brace]
	}
	return len(reParam.FindAllStringIndex(sig, -1))
}

func (s *Sim) ModuleGetFunction(mod cudriver.Module, name string) (cudriver.Function, cudriver.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mods[mod]
	if !ok {
		return 0, cudriver.ErrorInvalidHandle
	}
	fn, ok := m.entries[name]
	if !ok {
		return 0, cudriver.ErrorNotFound
	}
	return fn, cudriver.Success
}

func (s *Sim) ModuleUnload(mod cudriver.Module) cudriver.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mods[mod]
	if !ok {
		return cudriver.ErrorInvalidHandle
	}
	for _, fn := range m.entries {
		delete(s.fns, fn)
	}
	delete(s.mods, mod)
	return cudriver.Success
}

func (s *Sim) LaunchKernel(fn cudriver.Function,
	gridX, gridY, gridZ uint32,
	blockX, blockY, blockZ uint32,
	sharedBytes uint32, stream uintptr,
	params []unsafe.Pointer) cudriver.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, res := s.currentCtx()
	if res != cudriver.Success {
		return res
	}
	entry, ok := s.fns[fn]
	if !ok {
		return cudriver.ErrorInvalidHandle
	}
	if gridX == 0 || gridY == 0 || gridZ == 0 || blockX == 0 || blockY == 0 || blockZ == 0 {
		return cudriver.ErrorInvalidValue
	}
	if len(params) != entry.params {
		return cudriver.ErrorInvalidValue
	}
	if entry.traps {
		// Reported by the next synchronize, like a real device fault.
		state.fault = cudriver.ErrorLaunchFailed
	}
	return cudriver.Success
}
