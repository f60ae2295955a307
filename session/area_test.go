package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestFileArea_LoadMissingFile(t *testing.T) {
	area := NewFileArea(filepath.Join(t.TempDir(), "nope.json"))

	e, err := area.Load()
	if err != nil {
		t.Fatalf("Load() on missing file error = %v", err)
	}
	if !e.empty() {
		t.Errorf("Load() on missing file = %+v, want empty", e)
	}
}

func TestFileArea_CorruptFileReadsAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json at all"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	area := NewFileArea(path)
	e, err := area.Load()
	if err != nil {
		t.Fatalf("Load() on corrupt file error = %v", err)
	}
	if !e.empty() {
		t.Errorf("Load() on corrupt file = %+v, want empty", e)
	}
}

func TestFileArea_StoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	area := NewFileArea(path)

	in := Entries{
		AccessToken:  "access-token-123456",
		RefreshToken: "refresh-token",
		ExpiresAt:    "1000003300000",
		Profile:      `{"id":"u1","name":"Alice"}`,
		UserID:       "u1",
	}
	if err := area.Store(in); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	out, err := area.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}

	// The file must be private to the user.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}
}

func TestFileArea_ConcurrentStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	area := NewFileArea(path)

	const goroutines = 10
	var wg sync.WaitGroup

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()

			e := Entries{
				AccessToken: fmt.Sprintf("access-token-%d", id),
				UserID:      fmt.Sprintf("u%d", id),
			}
			if err := area.Store(e); err != nil {
				t.Errorf("Goroutine %d: Store() error = %v", id, err)
			}
		}(i)
	}

	wg.Wait()

	// The surviving file must be a complete write from one goroutine,
	// never an interleaved or torn one.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var e Entries
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("session file is not valid JSON after concurrent writes: %v", err)
	}
	if e.AccessToken == "" || e.UserID == "" {
		t.Errorf("session file incomplete after concurrent writes: %+v", e)
	}

	// No lock files may remain.
	if _, err := os.Stat(path + ".lock"); !os.IsNotExist(err) {
		t.Errorf("lock file still exists after all stores completed")
	}
}

func TestFileArea_ClearIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	area := NewFileArea(path)

	if err := area.Store(Entries{AccessToken: "tok"}); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := area.Clear(); err != nil {
			t.Fatalf("Clear() iteration %d error = %v", i, err)
		}
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("session file still exists after Clear()")
	}
}

func TestMemoryArea_RoundTripAndClear(t *testing.T) {
	area := NewMemoryArea()

	e, err := area.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !e.empty() {
		t.Errorf("fresh area = %+v, want empty", e)
	}

	in := Entries{AccessToken: "tok", UserID: "u1"}
	if err := area.Store(in); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	out, err := area.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}

	if err := area.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	out, err = area.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !out.empty() {
		t.Errorf("area after Clear() = %+v, want empty", out)
	}
}
