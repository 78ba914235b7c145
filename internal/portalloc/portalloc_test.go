package portalloc

import (
	"math/rand/v2"
	"testing"

	"github.com/aws-rdp-connect/rdpconnect/internal/fault"
	"github.com/aws-rdp-connect/rdpconnect/internal/model"
)

func TestAllocateWithinRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		min := 1024 + rand.IntN(60000)
		max := min + rand.IntN(1000)
		p, err := Allocate(model.PortRange{Min: min, Max: max})
		if err != nil {
			t.Fatalf("allocate [%d,%d]: %v", min, max, err)
		}
		if p < min || p > max {
			t.Fatalf("port %d outside [%d,%d]", p, min, max)
		}
	}
}

func TestAllocateSinglePortRange(t *testing.T) {
	p, err := Allocate(model.PortRange{Min: 9800, Max: 9800})
	if err != nil {
		t.Fatal(err)
	}
	if p != 9800 {
		t.Fatalf("expected 9800, got %d", p)
	}
}

func TestAllocateInvertedRangeFails(t *testing.T) {
	_, err := Allocate(model.PortRange{Min: 9900, Max: 9800})
	if err == nil {
		t.Fatal("expected error for inverted range")
	}
	if fault.KindOf(err) != fault.Configuration {
		t.Fatalf("expected configuration error, got %q", fault.KindOf(err))
	}
}
