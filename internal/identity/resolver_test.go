package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/nestwatch/nestwatch/internal/model"
)

func TestStaticResolvesConfiguredOwner(t *testing.T) {
	owner, err := Static{OwnerID: "guardian-7"}.ActiveOwner(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if owner != "guardian-7" {
		t.Fatalf("owner = %q", owner)
	}
}

func TestStaticEmptyMeansNoOwner(t *testing.T) {
	_, err := Static{}.ActiveOwner(context.Background())
	if !errors.Is(err, model.ErrNoOwner) {
		t.Fatalf("err = %v, want ErrNoOwner", err)
	}
}

func TestFuncAdapter(t *testing.T) {
	r := Func(func(context.Context) (string, error) { return "owner1", nil })
	owner, err := r.ActiveOwner(context.Background())
	if err != nil || owner != "owner1" {
		t.Fatalf("owner = %q, err = %v", owner, err)
	}
}
