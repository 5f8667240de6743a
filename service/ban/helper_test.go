package ban

import (
	"fmt"
	"math/rand"
	"testing"
	"time"
)

type prepareFunc func(t *testing.T, policy Policy) Service

func testPolicy() Policy {
	return Policy{
		Offenses:   3,
		Length:     time.Minute,
		MaxLength:  8 * time.Minute,
		CounterTTL: 10 * time.Minute,
	}
}

func testServiceIsBanned(t *testing.T, p prepareFunc) {
	var (
		id      = testIdentity()
		service = p(t, testPolicy())
	)

	status, err := service.IsBanned(id, ScopeSite)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := status.Banned, false; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func testServiceRecordOffense(t *testing.T, p prepareFunc) {
	var (
		id      = testIdentity()
		policy  = testPolicy()
		service = p(t, policy)
	)

	for i := int64(1); i < policy.Offenses; i++ {
		outcome, err := service.RecordOffense(id, ScopeSite)
		if err != nil {
			t.Fatal(err)
		}

		if have, want := outcome.Banned, false; have != want {
			t.Fatalf("have %v, want %v on offense %d", have, want, i)
		}

		if have, want := outcome.Offenses, i; have != want {
			t.Errorf("have %v, want %v on offense %d", have, want, i)
		}
	}

	outcome, err := service.RecordOffense(id, ScopeSite)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := outcome.Banned, true; have != want {
		t.Fatalf("have %v, want %v", have, want)
	}

	if have, want := outcome.Duration, policy.Length; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	// Offenses reset while the ban count carries over for escalation.
	if have, want := outcome.Offenses, int64(0); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := outcome.BanCount, int64(1); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	status, err := service.IsBanned(id, ScopeSite)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := status.Banned, true; have != want {
		t.Fatalf("have %v, want %v", have, want)
	}

	if status.Remaining <= 0 || status.Remaining > policy.Length {
		t.Errorf("have %v, want within (0, %v]", status.Remaining, policy.Length)
	}
}

func testServiceEscalation(t *testing.T, p prepareFunc) {
	var (
		id     = testIdentity()
		policy = Policy{
			Offenses:   1,
			Length:     time.Minute,
			MaxLength:  8 * time.Minute,
			CounterTTL: 10 * time.Minute,
		}
		service = p(t, policy)

		want = []time.Duration{
			time.Minute,
			2 * time.Minute,
			4 * time.Minute,
			8 * time.Minute,
			8 * time.Minute,
		}
	)

	for i, w := range want {
		outcome, err := service.RecordOffense(id, ScopeSite)
		if err != nil {
			t.Fatal(err)
		}

		if have, want := outcome.Banned, true; have != want {
			t.Fatalf("have %v, want %v on ban %d", have, want, i+1)
		}

		if have := outcome.Duration; have != w {
			t.Errorf("have %v, want %v on ban %d", have, w, i+1)
		}

		if have, want := outcome.BanCount, int64(i+1); have != want {
			t.Errorf("have %v, want %v on ban %d", have, want, i+1)
		}
	}
}

func testServiceScope(t *testing.T, p prepareFunc) {
	var (
		id      = testIdentity()
		policy  = testPolicy()
		service = p(t, policy)
		scope   = "/api/auth/*"
	)

	for i := int64(0); i < policy.Offenses; i++ {
		if _, err := service.RecordOffense(id, scope); err != nil {
			t.Fatal(err)
		}
	}

	status, err := service.IsBanned(id, scope)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := status.Banned, true; have != want {
		t.Fatalf("have %v, want %v", have, want)
	}

	// A per-endpoint ban leaves the site scope and other endpoints alone.
	status, err = service.IsBanned(id, ScopeSite)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := status.Banned, false; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	status, err = service.IsBanned(id, "/api/users/me")
	if err != nil {
		t.Fatal(err)
	}

	if have, want := status.Banned, false; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func testIdentity() string {
	return fmt.Sprintf("203.0.113.%d:%d", rand.Intn(255), rand.Int63())
}
