package auth

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestMockStore(t *testing.T) {
	s := NewMockStore()

	if _, err := s.GetPassword("local"); !errors.Is(err, ErrPasswordNotFound) {
		t.Fatalf("GetPassword() error = %v, want ErrPasswordNotFound", err)
	}
	if err := s.SetPassword("Local", "s3cret"); err != nil {
		t.Fatalf("SetPassword() error = %v", err)
	}
	got, err := s.GetPassword(" local ")
	if err != nil || got != "s3cret" {
		t.Fatalf("GetPassword() = %q, %v; want s3cret", got, err)
	}
	if err := s.DeletePassword("local"); err != nil {
		t.Fatalf("DeletePassword() error = %v", err)
	}
	if err := s.DeletePassword("local"); !errors.Is(err, ErrPasswordNotFound) {
		t.Fatalf("DeletePassword() error = %v, want ErrPasswordNotFound", err)
	}
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	s := NewKeyringStore("")

	if err := s.SetPassword("Prod", "hunter2"); err != nil {
		t.Fatalf("SetPassword() error = %v", err)
	}
	got, err := s.GetPassword("prod")
	if err != nil || got != "hunter2" {
		t.Fatalf("GetPassword() = %q, %v; want hunter2", got, err)
	}
	if err := s.DeletePassword("prod"); err != nil {
		t.Fatalf("DeletePassword() error = %v", err)
	}
	if _, err := s.GetPassword("prod"); !errors.Is(err, ErrPasswordNotFound) {
		t.Fatalf("GetPassword() error = %v, want ErrPasswordNotFound", err)
	}
	if err := s.DeletePassword("prod"); !errors.Is(err, ErrPasswordNotFound) {
		t.Fatalf("DeletePassword() error = %v, want ErrPasswordNotFound", err)
	}
}
