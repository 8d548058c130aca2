package sim

import "testing"

func TestScheduler_TimeOrdering(t *testing.T) {
	s := NewScheduler()
	var order []string

	s.Schedule(20, func() { order = append(order, "c") })
	s.Schedule(5, func() { order = append(order, "a") })
	s.Schedule(10, func() { order = append(order, "b") })

	s.Run(nil)

	want := []string{"a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestScheduler_TieBrokenByInsertionOrder(t *testing.T) {
	s := NewScheduler()
	var order []int

	for i := 0; i < 5; i++ {
		i := i
		s.Schedule(0, func() { order = append(order, i) })
	}
	s.Run(nil)

	for i, v := range order {
		if v != i {
			t.Errorf("order[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestScheduler_HaltsBeforeUntil(t *testing.T) {
	s := NewScheduler()
	ran := false
	s.Schedule(10, func() { ran = true })

	until := 5.0
	s.Run(&until)

	if ran {
		t.Error("event at t=10 should not have run with until=5")
	}
	if s.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1 (event still queued)", s.Pending())
	}
	if s.Now() != 0 {
		t.Errorf("Now() = %v, want 0 (clock should not advance past until)", s.Now())
	}
}

func TestScheduler_ResumesAfterPartialRun(t *testing.T) {
	s := NewScheduler()
	var order []int
	s.Schedule(5, func() { order = append(order, 1) })
	s.Schedule(15, func() { order = append(order, 2) })

	until := 10.0
	s.Run(&until)
	if len(order) != 1 {
		t.Fatalf("after first Run, order = %v, want len 1", order)
	}

	s.Run(nil)
	if len(order) != 2 || order[1] != 2 {
		t.Fatalf("after second Run, order = %v, want [1 2]", order)
	}
}

func TestScheduler_NestedScheduling(t *testing.T) {
	s := NewScheduler()
	var order []string
	s.Schedule(1, func() {
		order = append(order, "first")
		s.Schedule(1, func() { order = append(order, "nested") })
	})
	s.Run(nil)

	want := []string{"first", "nested"}
	if len(order) != 2 || order[0] != want[0] || order[1] != want[1] {
		t.Errorf("order = %v, want %v", order, want)
	}
	if s.Now() != 2 {
		t.Errorf("Now() = %v, want 2", s.Now())
	}
}
