package limiter

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/limitd/limitd/service/rule"
)

type prepareFunc func(t *testing.T) Service

func testServiceCheckFixed(t *testing.T, p prepareFunc) {
	var (
		identity = testIdentity()
		service  = p(t)
		r        = &rule.Rule{
			Pattern:  "/api/*",
			Limit:    5,
			Period:   2 * time.Second,
			Strategy: rule.StrategyFixed,
		}
	)

	alignWindow(r.Period)

	for i := 0; i < 5; i++ {
		decision, err := service.Check(r, identity)
		if err != nil {
			t.Fatal(err)
		}

		if have, want := decision.Allowed, true; have != want {
			t.Fatalf("have %v, want %v on request %d", have, want, i+1)
		}

		if have, want := decision.Remaining, int64(4-i); have != want {
			t.Errorf("have %v, want %v on request %d", have, want, i+1)
		}
	}

	decision, err := service.Check(r, identity)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := decision.Allowed, false; have != want {
		t.Fatalf("have %v, want %v", have, want)
	}

	if have, want := decision.Remaining, int64(0); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	time.Sleep(decision.Reset + 100*time.Millisecond)

	decision, err = service.Check(r, identity)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := decision.Allowed, true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func testServiceCheckMoving(t *testing.T, p prepareFunc) {
	var (
		identity = testIdentity()
		service  = p(t)
		r        = &rule.Rule{
			Pattern:  "/api/*",
			Limit:    5,
			Period:   2 * time.Second,
			Strategy: rule.StrategyMoving,
		}
	)

	alignWindow(r.Period)

	for i := 0; i < 5; i++ {
		decision, err := service.Check(r, identity)
		if err != nil {
			t.Fatal(err)
		}

		if have, want := decision.Allowed, true; have != want {
			t.Fatalf("have %v, want %v on request %d", have, want, i+1)
		}
	}

	decision, err := service.Check(r, identity)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := decision.Allowed, false; have != want {
		t.Fatalf("have %v, want %v", have, want)
	}

	// After two full subwindows both counters have drained.
	time.Sleep(2*r.Period + 100*time.Millisecond)

	decision, err = service.Check(r, identity)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := decision.Allowed, true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func testServiceCheckConcurrent(t *testing.T, p prepareFunc) {
	var (
		identity = testIdentity()
		service  = p(t)
		r        = &rule.Rule{
			Pattern:  "/api/*",
			Limit:    10,
			Period:   time.Minute,
			Strategy: rule.StrategyFixed,
		}

		admitted int64
		mu       sync.Mutex
		wg       sync.WaitGroup
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			decision, err := service.Check(r, identity)
			if err != nil {
				t.Error(err)
				return
			}

			if decision.Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if have, want := admitted, r.Limit; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func testServiceCheckIsolation(t *testing.T, p prepareFunc) {
	var (
		service = p(t)
		first   = testIdentity()
		second  = testIdentity()
		r       = &rule.Rule{
			Pattern:  "/api/*",
			Limit:    1,
			Period:   time.Minute,
			Strategy: rule.StrategyFixed,
		}
		other = &rule.Rule{
			Pattern:  "/api/auth/*",
			Limit:    1,
			Period:   time.Minute,
			Strategy: rule.StrategyFixed,
		}
	)

	decision, err := service.Check(r, first)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := decision.Allowed, true; have != want {
		t.Fatalf("have %v, want %v", have, want)
	}

	// Exhausting one identity leaves others untouched.
	decision, err = service.Check(r, second)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := decision.Allowed, true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	// Same for unrelated rules of one identity.
	decision, err = service.Check(other, first)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := decision.Allowed, true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

// alignWindow sleeps past the next epoch-aligned window boundary so a test
// never straddles one halfway through its budget.
func alignWindow(period time.Duration) {
	var (
		p   = int64(period / time.Second)
		now = time.Now().Unix()
	)

	until := time.Unix((now/p+1)*p, 0).Add(50 * time.Millisecond)

	time.Sleep(time.Until(until))
}

func testIdentity() string {
	return fmt.Sprintf("203.0.113.%d:%d", rand.Intn(255), rand.Int63())
}
