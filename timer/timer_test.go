package timer

import (
	"testing"
	"time"
)

func TestVirtualClockFiresInDeadlineOrder(t *testing.T) {
	c := NewVirtualClock()
	var order []string
	c.After(5*time.Second, func() { order = append(order, "b") })
	c.After(2*time.Second, func() { order = append(order, "a") })
	c.After(10*time.Second, func() { order = append(order, "c") })

	c.Advance(6 * time.Second)
	want := []string{"a", "b"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}

	c.Advance(10 * time.Second)
	if len(order) != 3 || order[2] != "c" {
		t.Fatalf("order = %v, want final entry c", order)
	}
}

func TestVirtualClockCancel(t *testing.T) {
	c := NewVirtualClock()
	fired := false
	h := c.After(time.Second, func() { fired = true })
	h.Cancel()
	c.Advance(2 * time.Second)
	if fired {
		t.Fatal("cancelled callback fired")
	}
}
