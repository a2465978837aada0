// Package overlay allocates overlay-archive slot letters for add-on
// content archives layered onto a client installation.
//
// A slot is one character from the canonical alphabet: digits 4 through 8,
// then uppercase A through Y. Z stays reserved and is deliberately not part
// of the alphabet; downstream tooling depends on that boundary.
package overlay

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mittelgard/clientforge/internal/config"
)

// SlotError is a configuration error raised for an invalid reserved
// slot letter. It names the dataset and the offending value.
type SlotError struct {
	Dataset string
	Slot    string
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("dataset %q: invalid slot letter %q", e.Dataset, e.Slot)
}

// Alphabet returns the canonical slot alphabet in order: 4..8 then A..Y.
func Alphabet() []rune {
	letters := make([]rune, 0, 5+25)
	for c := '4'; c <= '8'; c++ {
		letters = append(letters, c)
	}
	for c := 'A'; c < 'Z'; c++ {
		letters = append(letters, c)
	}
	return letters
}

// ArchivePath builds the overlay archive path for a slot. Pure string
// construction, no I/O: locale-scoped datasets keep their overlays under
// the locale subdirectory with the locale embedded in the file name.
func ArchivePath(dataDir, locale string, localeScoped bool, slot rune) string {
	if localeScoped {
		return filepath.Join(dataDir, locale, fmt.Sprintf("patch-%s-%c.mpq", locale, slot))
	}
	return filepath.Join(dataDir, fmt.Sprintf("patch-%c.mpq", slot))
}

// FreeSlots returns every unused slot letter from the dataset's reserved
// development letter onward, in alphabet order. A letter is free when no
// archive file exists at its path and the path is not the dataset's own
// development overlay. An empty result is valid.
func FreeSlots(ds *config.Dataset) ([]rune, error) {
	idx, err := startIndex(ds)
	if err != nil {
		return nil, err
	}

	alphabet := Alphabet()
	devPath := normalize(ArchivePath(ds.DataDir(), ds.Locale, ds.LocaleScoped, alphabet[idx]))

	var free []rune
	for _, slot := range alphabet[idx:] {
		path := ArchivePath(ds.DataDir(), ds.Locale, ds.LocaleScoped, slot)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if normalize(path) == devPath {
			continue
		}
		free = append(free, slot)
	}
	return free, nil
}

// startIndex locates the dataset's reserved letter in the alphabet,
// case-insensitively.
func startIndex(ds *config.Dataset) (int, error) {
	slot := strings.ToUpper(strings.TrimSpace(ds.DevSlot))
	if len(slot) != 1 {
		return 0, &SlotError{Dataset: ds.Name, Slot: ds.DevSlot}
	}
	for i, c := range Alphabet() {
		if string(c) == slot {
			return i, nil
		}
	}
	return 0, &SlotError{Dataset: ds.Name, Slot: ds.DevSlot}
}

func normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
