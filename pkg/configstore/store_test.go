package configstore

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/psaab/cfgblock/pkg/config"
)

const leafConfig = `hostname leaf1
interface Ethernet1
   description uplink
   mtu 9214
router bgp 65001
   neighbor 10.0.0.0 remote-as 65000
`

func TestPutAndSelect(t *testing.T) {
	s := New(0)

	snap, err := s.Put("leaf1", leafConfig, 3, "test")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if snap.Indent != 3 || snap.Source != "test" || snap.Digest == "" {
		t.Errorf("snapshot = %+v", snap)
	}

	keys, err := s.Select("leaf1", []string{"interface Ethernet1"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if want := []string{"description uplink", "mtu 9214"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("Select = %q, want %q", keys, want)
	}

	keys, err = s.SelectDotted("leaf1", "router bgp 65001", "")
	if err != nil {
		t.Fatalf("SelectDotted: %v", err)
	}
	if want := []string{"neighbor 10.0.0.0 remote-as 65000"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("SelectDotted = %q, want %q", keys, want)
	}
}

func TestSelectMisses(t *testing.T) {
	s := New(0)
	if _, err := s.Put("leaf1", leafConfig, 3, "test"); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Select("leaf1", []string{"interface Ethernet9"}); !errors.Is(err, config.ErrBlockNotFound) {
		t.Errorf("missing block err = %v, want ErrBlockNotFound", err)
	}
	if _, err := s.SelectDotted("leaf1", "router bgp 65001.nope", "."); !errors.Is(err, config.ErrBlockNotFound) {
		t.Errorf("missing dotted err = %v, want ErrBlockNotFound", err)
	}
	if _, err := s.Select("spine9", []string{"x"}); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("unknown device err = %v, want ErrUnknownDevice", err)
	}

	st := s.Stats()
	if st.Lookups != 2 || st.Misses != 2 {
		t.Errorf("stats = %+v, want 2 lookups / 2 misses", st)
	}
}

func TestPutEmptyDevice(t *testing.T) {
	if _, err := New(0).Put("  ", "a", 1, "test"); err == nil {
		t.Error("expected error for empty device name")
	}
}

func TestStats(t *testing.T) {
	s := New(0)
	if _, err := s.Put("r1", "a\n b\n     bad\nc", 1, "test"); err != nil {
		t.Fatal(err)
	}
	st := s.Stats()
	if st.Parses != 1 || st.Lines != 4 || st.Anomalies != 1 {
		t.Errorf("stats = %+v, want 1 parse / 4 lines / 1 anomaly", st)
	}
}

func TestHistory(t *testing.T) {
	s := New(2)

	for _, text := range []string{"v1", "v2", "v2", "v3", "v4"} {
		if _, err := s.Put("r1", text, 1, "test"); err != nil {
			t.Fatal(err)
		}
	}

	hist, err := s.History("r1")
	if err != nil {
		t.Fatal(err)
	}
	// Unchanged reload of v2 is not recorded; v1 falls off the end.
	var got []string
	for _, h := range hist {
		got = append(got, h.Text)
	}
	if want := []string{"v3", "v2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("history = %q, want %q", got, want)
	}

	snap, err := s.Rollback("r1", 1)
	if err != nil || snap.Text != "v2" {
		t.Errorf("Rollback(1) = %v, %v; want v2", snap, err)
	}
	if _, err := s.Rollback("r1", 2); err == nil {
		t.Error("expected error for rollback past history")
	}
	if _, err := s.Rollback("r2", 0); err == nil {
		t.Error("expected error for device without history")
	}
}

func TestHistoryIndentChange(t *testing.T) {
	s := New(0)
	s.Put("r1", "a\n b", 1, "test")
	s.Put("r1", "a\n b", 2, "test")

	hist, _ := s.History("r1")
	if len(hist) != 1 || hist[0].Indent != 1 {
		t.Errorf("history = %v, want the indent 1 snapshot", hist)
	}
}

func TestRemove(t *testing.T) {
	s := New(0)
	s.Put("r1", "a", 1, "test")
	s.Put("r2", "b", 1, "test")

	if err := s.Remove("r1"); err != nil {
		t.Fatal(err)
	}
	if got := s.Devices(); !reflect.DeepEqual(got, []string{"r2"}) {
		t.Errorf("Devices = %q, want [r2]", got)
	}
	if err := s.Remove("r1"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("second Remove err = %v", err)
	}
	if _, err := s.History("r1"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("History after Remove err = %v", err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"spine1.conf": "hostname spine1\n",
		"leaf1.conf":  leafConfig,
		"notes.txt":   "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.conf"), 0755); err != nil {
		t.Fatal(err)
	}

	s := New(0)
	n, err := s.LoadDir(dir, "", 3)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if n != 2 {
		t.Errorf("loaded %d, want 2", n)
	}
	if got := s.Devices(); !reflect.DeepEqual(got, []string{"leaf1", "spine1"}) {
		t.Errorf("Devices = %q", got)
	}
	snap, err := s.Get("leaf1")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Source != filepath.Join(dir, "leaf1.conf") {
		t.Errorf("source = %q", snap.Source)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := New(0).LoadFile("r1", filepath.Join(t.TempDir(), "nope.conf"), 1); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDeviceName(t *testing.T) {
	tests := map[string]string{
		"/etc/cfgblock/leaf1.conf": "leaf1",
		"spine.cfg":                "spine",
		"router":                   "router",
	}
	for in, want := range tests {
		if got := DeviceName(in); got != want {
			t.Errorf("DeviceName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConcurrentPutSelect(t *testing.T) {
	s := New(0)
	s.Put("r1", leafConfig, 3, "test")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Put("r1", leafConfig, 3, "test")
		}()
		go func() {
			defer wg.Done()
			if _, err := s.Select("r1", []string{"hostname leaf1"}); err != nil {
				t.Errorf("Select: %v", err)
			}
		}()
	}
	wg.Wait()
}
