package container

import (
	"fmt"

	"github.com/CyberBotX/ncsfplay/internal/errkind"
)

const maxLibraryDepth = 10

// Loader fetches the raw bytes of a sibling NCSF file named by a _lib
// tag, relative to whatever the caller considers "the same directory"
// as the file that referenced it.
type Loader func(name string) ([]byte, error)

// ResolveLibraryChain builds the effective program-section bytes for
// f by overlaying every library's program section before f's own, per
// section 5: first _lib depth-first up to 10 levels, then numbered
// _libN ascending, then f's own bytes — later writes overwrite
// earlier ones. missingIsFatal selects between erroring out and
// silently skipping an unreadable library, matching error kind 3's
// documented secondary flag (used when reading partial libraries only
// for tag propagation).
func ResolveLibraryChain(f *File, load Loader, missingIsFatal bool) ([]byte, error) {
	overlay := make([]byte, 0, len(f.Program))
	if err := overlayChain(f, load, missingIsFatal, 0, &overlay); err != nil {
		return nil, err
	}
	return overlayBytes(overlay, f.Program), nil
}

func overlayChain(f *File, load Loader, missingIsFatal bool, depth int, acc *[]byte) error {
	chain := f.Tags.LibraryChain()
	for i, name := range chain {
		// Only the bare "_lib" entry recurses depth-first; numbered
		// _libN entries are leaves, per section 5's ordering note.
		recursive := i == 0 && f.Tags.Has("_lib")

		data, err := load(name)
		if err != nil {
			if missingIsFatal {
				return errkind.Wrap(errkind.MissingFile, fmt.Sprintf("loading library %q", name), err)
			}
			continue
		}
		lib, err := Parse(data)
		if err != nil {
			if missingIsFatal {
				return err
			}
			continue
		}
		if recursive {
			if depth+1 > maxLibraryDepth {
				return errkind.New(errkind.Container, "ncsf: library chain exceeds depth %d", maxLibraryDepth)
			}
			if err := overlayChain(lib, load, missingIsFatal, depth+1, acc); err != nil {
				return err
			}
		}
		*acc = overlayBytes(*acc, lib.Program)
	}
	return nil
}

// overlayBytes writes patch over base at offset 0, growing base if
// patch is longer. Section 5 describes the overlay as later program
// sections "overwriting" earlier ones byte-for-byte from the start,
// the same convention an SDAT image patch would use in place.
func overlayBytes(base, patch []byte) []byte {
	if len(patch) > len(base) {
		grown := make([]byte, len(patch))
		copy(grown, base)
		base = grown
	}
	copy(base, patch)
	return base
}
