package statemachine

import "testing"

func TestLinearTransitions(t *testing.T) {
	var log []string
	m := New()
	m.AddState("A", false, 0, nil, func() error { log = append(log, "A"); return nil })
	m.AddState("B", false, 0, nil, func() error { log = append(log, "B"); return nil })
	m.AddState("C", false, 0, nil, func() error { log = append(log, "C"); return nil })
	m.AddTransition("A", "B")
	m.AddTransition("B", "C")

	if err := m.SetState("A"); err != nil {
		t.Fatal(err)
	}
	if err := m.StateComplete(); err != nil {
		t.Fatal(err)
	}
	if err := m.StateComplete(); err != nil {
		t.Fatal(err)
	}
	if m.CurrentState() != "C" {
		t.Fatalf("current state = %q, want C", m.CurrentState())
	}
	want := []string{"A", "B", "C"}
	for i, w := range want {
		if log[i] != w {
			t.Fatalf("log[%d] = %q, want %q", i, log[i], w)
		}
	}
}

func TestCycleStateIncrementsPhase(t *testing.T) {
	entries := 0
	m := New()
	m.AddState("TURN", false, 0, nil, func() error { entries++; return nil })
	m.SetCycleState("TURN")

	if err := m.SetState("TURN"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := m.StateComplete(); err != nil {
			t.Fatal(err)
		}
	}
	if m.Phase() != 3 {
		t.Fatalf("Phase() = %d, want 3", m.Phase())
	}
	if entries != 4 {
		t.Fatalf("entries = %d, want 4", entries)
	}
}

func TestMessageBufferedUntilStateReached(t *testing.T) {
	const kindFoo = 7
	var handled []byte
	m := New()
	m.AddState("A", false, 0, nil, nil)
	m.AddState("B", true, kindFoo, func(p []byte) error { handled = p; return nil }, nil)
	m.AddTransition("A", "B")

	if err := m.SetState("A"); err != nil {
		t.Fatal(err)
	}
	if err := m.HandleMessage(kindFoo, []byte("early")); err != nil {
		t.Fatal(err)
	}
	if handled != nil {
		t.Fatal("message handled before its state was reached")
	}
	if err := m.StateComplete(); err != nil {
		t.Fatal(err)
	}
	if string(handled) != "early" {
		t.Fatalf("handled = %q, want %q", handled, "early")
	}
}

func TestForcedJumpViaSetState(t *testing.T) {
	var log []string
	m := New()
	m.AddState("A", false, 0, nil, func() error { log = append(log, "A"); return nil })
	m.AddState("BLAME", false, 0, nil, func() error { log = append(log, "BLAME"); return nil })
	if err := m.SetState("A"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetState("BLAME"); err != nil {
		t.Fatal(err)
	}
	if m.CurrentState() != "BLAME" {
		t.Fatalf("current state = %q, want BLAME", m.CurrentState())
	}
}
