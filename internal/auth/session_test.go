package auth

import (
	"testing"
	"time"
)

func TestSessionStore(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		store := NewSessionStore()
		if store.IsAttached() {
			t.Error("new store should have no session")
		}
		if _, ok := store.Current(); ok {
			t.Error("Current should report absence")
		}
	})

	t.Run("attach and read", func(t *testing.T) {
		store := NewSessionStore()
		store.Attach(Session{AccessToken: "tok", Address: "0xAAA", CreatedAt: time.Now()})

		if !store.IsAttached() {
			t.Fatal("expected attached session")
		}
		session, ok := store.Current()
		if !ok || session.Address != "0xAAA" {
			t.Errorf("unexpected session %v ok=%v", session, ok)
		}
	})

	t.Run("attach overwrites", func(t *testing.T) {
		store := NewSessionStore()
		store.Attach(Session{AccessToken: "first", Address: "0xAAA"})
		store.Attach(Session{AccessToken: "second", Address: "0xBBB"})

		session, _ := store.Current()
		if session.AccessToken != "second" || session.Address != "0xBBB" {
			t.Errorf("expected the later session to win, got %v", session)
		}
	})
}
