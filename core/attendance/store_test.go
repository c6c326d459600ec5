package attendance

import (
	"sync"
	"testing"
	"time"
)

func newTestSession(id string, ttl time.Duration) Session {
	now := time.Now().UTC()
	return Session{
		ID:            id,
		SubjectCode:   "phy101",
		ClassName:     "S5 MathPhys",
		ClassLocation: Coordinate{Lat: -4.3217, Lng: 15.3125},
		OwnerID:       "owner-1",
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}
}

func TestSessionStore_CreateGetDelete(t *testing.T) {
	store := NewSessionStore()
	defer store.Stop()

	sess := newTestSession("s1", time.Minute)
	if err := store.Create(sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Create(sess); err != ErrDuplicateSession {
		t.Errorf("Create() twice error = %v, want %v", err, ErrDuplicateSession)
	}

	got, err := store.Get("s1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.SubjectCode != sess.SubjectCode || got.ID != sess.ID {
		t.Errorf("Get() = %+v, want %+v", got, sess)
	}

	if _, err = store.Get("nope"); err != ErrSessionNotFound {
		t.Errorf("Get(unknown) error = %v, want %v", err, ErrSessionNotFound)
	}

	store.Delete("s1")
	store.Delete("s1") // idempotent
	if _, err = store.Get("s1"); err != ErrSessionNotFound {
		t.Errorf("Get() after Delete() error = %v, want %v", err, ErrSessionNotFound)
	}
}

func TestSessionStore_LazyExpiry(t *testing.T) {
	store := NewSessionStore()
	defer store.Stop()

	if err := store.Create(newTestSession("s1", time.Minute)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// advance time past expiry; the scheduled deletion never ran
	nowFunc = func() time.Time { return time.Now().Add(2 * time.Minute) }
	defer func() { nowFunc = time.Now }()

	if _, err := store.Get("s1"); err != ErrSessionNotFound {
		t.Errorf("Get() after expiry error = %v, want %v", err, ErrSessionNotFound)
	}
	// lazy expiry removed it as a side effect
	if n := store.Len(); n != 0 {
		t.Errorf("Len() = %d, want 0", n)
	}
	if _, err := store.AddPresent("s1", "u1"); err != ErrSessionNotFound {
		t.Errorf("AddPresent() after expiry error = %v, want %v", err, ErrSessionNotFound)
	}
}

func TestSessionStore_ScheduledDeletion(t *testing.T) {
	store := NewSessionStore()
	defer store.Stop()

	if err := store.Create(newTestSession("s1", 10*time.Millisecond)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	store.Schedule("s1", 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	if _, err := store.Get("s1"); err != ErrSessionNotFound {
		t.Errorf("Get() after timer fired error = %v, want %v", err, ErrSessionNotFound)
	}
	// the racing lazy expiry already removed it; the timer's Delete no-oped
}

func TestSessionStore_AddPresent(t *testing.T) {
	store := NewSessionStore()
	defer store.Stop()

	if err := store.Create(newTestSession("s1", time.Minute)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	added, err := store.AddPresent("s1", "u1")
	if err != nil {
		t.Fatalf("AddPresent() error = %v", err)
	}
	if !added {
		t.Error("AddPresent() first call = false, want true")
	}

	added, err = store.AddPresent("s1", "u1")
	if err != nil {
		t.Fatalf("AddPresent() error = %v", err)
	}
	if added {
		t.Error("AddPresent() second call = true, want false")
	}

	present, err := store.Present("s1")
	if err != nil {
		t.Fatalf("Present() error = %v", err)
	}
	if len(present) != 1 || present[0] != "u1" {
		t.Errorf("Present() = %v, want [u1]", present)
	}

	store.RemovePresent("s1", "u1")
	store.RemovePresent("s1", "u1") // idempotent
	if added, _ = store.AddPresent("s1", "u1"); !added {
		t.Error("AddPresent() after RemovePresent() = false, want true")
	}
}

func TestSessionStore_AddPresentConcurrent(t *testing.T) {
	store := NewSessionStore()
	defer store.Stop()

	if err := store.Create(newTestSession("s1", time.Minute)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	winners := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := store.AddPresent("s1", "u1")
			if err != nil {
				t.Errorf("AddPresent() error = %v", err)
				return
			}
			if added {
				winners <- true
			}
		}()
	}
	wg.Wait()
	close(winners)

	var count int
	for range winners {
		count++
	}
	if count != 1 {
		t.Errorf("concurrent AddPresent() winners = %d, want exactly 1", count)
	}
}
