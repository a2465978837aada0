package overlay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mittelgard/clientforge/internal/config"
	"github.com/mittelgard/clientforge/internal/testutil"
)

func testDataset(t *testing.T, devSlot string, localeScoped bool) *config.Dataset {
	t.Helper()

	ds := testutil.NewDataset(t, "midgard", nil)
	ds.DevSlot = devSlot
	ds.LocaleScoped = localeScoped
	testutil.MakeDataDir(t, ds)
	return ds
}

func TestAlphabet(t *testing.T) {
	alphabet := Alphabet()

	if len(alphabet) != 30 {
		t.Fatalf("alphabet length = %d, want 30", len(alphabet))
	}
	if alphabet[0] != '4' || alphabet[4] != '8' {
		t.Errorf("digit range = %c..%c, want 4..8", alphabet[0], alphabet[4])
	}
	if alphabet[5] != 'A' {
		t.Errorf("first letter = %c, want A", alphabet[5])
	}
	// Z stays reserved: the alphabet must end one short of it.
	if alphabet[len(alphabet)-1] != 'Y' {
		t.Errorf("last letter = %c, want Y", alphabet[len(alphabet)-1])
	}
	for _, c := range alphabet {
		if c == 'Z' || c == '9' {
			t.Errorf("alphabet contains excluded letter %c", c)
		}
	}
}

func TestArchivePath(t *testing.T) {
	tests := []struct {
		name         string
		localeScoped bool
		slot         rune
		want         string
	}{
		{
			name: "plain",
			slot: '4',
			want: filepath.Join("Data", "patch-4.mpq"),
		},
		{
			name:         "locale_scoped",
			localeScoped: true,
			slot:         'B',
			want:         filepath.Join("Data", "enUS", "patch-enUS-B.mpq"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ArchivePath("Data", "enUS", tt.localeScoped, tt.slot)
			if got != tt.want {
				t.Errorf("ArchivePath() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFreeSlotsStartsAtReservedLetter(t *testing.T) {
	ds := testDataset(t, "B", false)

	free, err := FreeSlots(ds)
	if err != nil {
		t.Fatalf("FreeSlots() error: %v", err)
	}
	if len(free) == 0 {
		t.Fatal("expected free slots on an empty installation")
	}

	for _, slot := range free {
		switch {
		case slot >= '4' && slot <= '8':
			t.Errorf("free slots include digit %c before start letter", slot)
		case slot == 'A':
			t.Error("free slots include A before start letter B")
		case slot == 'B':
			t.Error("free slots include the reserved development letter itself")
		}
	}
	if free[0] != 'C' {
		t.Errorf("first free slot = %c, want C", free[0])
	}
}

func TestFreeSlotsLowercaseStartLetter(t *testing.T) {
	ds := testDataset(t, "b", false)

	free, err := FreeSlots(ds)
	if err != nil {
		t.Fatalf("FreeSlots() error: %v", err)
	}
	if len(free) == 0 || free[0] != 'C' {
		t.Errorf("free slots = %q, want start at C", string(free))
	}
}

func TestFreeSlotsSkipsExistingArchives(t *testing.T) {
	for _, localeScoped := range []bool{false, true} {
		name := "plain"
		if localeScoped {
			name = "locale_scoped"
		}
		t.Run(name, func(t *testing.T) {
			ds := testDataset(t, "4", localeScoped)

			occupied := []rune{'5', 'C'}
			for _, slot := range occupied {
				path := ArchivePath(ds.DataDir(), ds.Locale, ds.LocaleScoped, slot)
				if err := os.WriteFile(path, []byte("mpq"), 0644); err != nil {
					t.Fatalf("write archive: %v", err)
				}
			}

			free, err := FreeSlots(ds)
			if err != nil {
				t.Fatalf("FreeSlots() error: %v", err)
			}
			for _, slot := range free {
				for _, used := range occupied {
					if slot == used {
						t.Errorf("free slots include occupied letter %c", slot)
					}
				}
			}
		})
	}
}

func TestFreeSlotsInvalidStartLetter(t *testing.T) {
	tests := []struct {
		name string
		slot string
	}{
		{name: "reserved_z", slot: "Z"},
		{name: "excluded_digit", slot: "9"},
		{name: "out_of_alphabet", slot: "!"},
		{name: "empty", slot: ""},
		{name: "multi_char", slot: "AB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := testDataset(t, tt.slot, false)

			_, err := FreeSlots(ds)
			if err == nil {
				t.Fatal("expected error for invalid start letter")
			}
			slotErr, ok := err.(*SlotError)
			if !ok {
				t.Fatalf("error type = %T, want *SlotError", err)
			}
			if slotErr.Dataset != ds.Name {
				t.Errorf("error names dataset %q, want %q", slotErr.Dataset, ds.Name)
			}
		})
	}
}

func TestFreeSlotsEmptyResult(t *testing.T) {
	ds := testDataset(t, "Y", false)

	// Y is the last alphabet letter and the reserved one, so nothing is free.
	free, err := FreeSlots(ds)
	if err != nil {
		t.Fatalf("FreeSlots() error: %v", err)
	}
	if len(free) != 0 {
		t.Errorf("free slots = %q, want none", string(free))
	}
}
