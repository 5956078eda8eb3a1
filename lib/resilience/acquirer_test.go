package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/go-i2p/redistools/lib/errors"
)

func TestTryAcquireReturnsFirstLiveConnection(t *testing.T) {
	tests := []struct {
		name      string
		deadFirst int
		threshold int
	}{
		{"no dead connections", 0, 5},
		{"one dead connection", 1, 5},
		{"threshold minus one dead", 4, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFactory{scripts: []poolScript{{script: dead(tt.deadFirst), rest: true}}}
			a := NewResourceAcquirer(NewPoolManager(f.create), tt.threshold)

			lease, gen, err := a.TryAcquire(context.Background())
			if err != nil {
				t.Fatalf("TryAcquire failed: %v", err)
			}
			if lease == nil {
				t.Fatal("expected a lease")
			}
			if gen != 1 {
				t.Errorf("expected generation 1, got %d", gen)
			}
			if got := lease.Conn().(*fakeConn).id; got != int64(tt.deadFirst+1) {
				t.Errorf("expected connection %d, got %d", tt.deadFirst+1, got)
			}

			_, _, discards := f.created()[0].counts()
			if discards != tt.deadFirst {
				t.Errorf("expected %d discards, got %d", tt.deadFirst, discards)
			}
		})
	}
}

func TestTryAcquireExhaustion(t *testing.T) {
	f := &fakeFactory{scripts: []poolScript{{rest: false}}}
	a := NewResourceAcquirer(NewPoolManager(f.create), 5)

	lease, gen, err := a.TryAcquire(context.Background())
	if err != nil {
		t.Fatalf("exhaustion must not be an error, got %v", err)
	}
	if lease != nil {
		t.Fatal("expected no lease")
	}
	if gen != 1 {
		t.Errorf("expected generation 1, got %d", gen)
	}

	borrows, releases, discards := f.created()[0].counts()
	if borrows != 5 || discards != 5 {
		t.Errorf("expected 5 borrows and 5 discards, got %d/%d", borrows, discards)
	}
	if releases != 0 {
		t.Errorf("dead connections must never be released for reuse, got %d", releases)
	}
}

func TestTryAcquireBorrowErrorsCount(t *testing.T) {
	f := &fakeFactory{scripts: []poolScript{{borrowErr: errors.New("dial tcp: connection refused")}}}
	a := NewResourceAcquirer(NewPoolManager(f.create), 3)

	lease, _, err := a.TryAcquire(context.Background())
	if err != nil || lease != nil {
		t.Fatalf("expected exhaustion, got lease=%v err=%v", lease, err)
	}
	if borrows, _, _ := f.created()[0].counts(); borrows != 3 {
		t.Errorf("expected 3 borrows, got %d", borrows)
	}
}

func TestTryAcquirePoolCreationFailure(t *testing.T) {
	f := &fakeFactory{scripts: []poolScript{{rest: true}}, fail: map[int]bool{0: true}}
	a := NewResourceAcquirer(NewPoolManager(f.create), 3)

	lease, gen, err := a.TryAcquire(context.Background())
	if err != nil || lease != nil {
		t.Fatalf("expected exhaustion, got lease=%v err=%v", lease, err)
	}
	if gen != 0 {
		t.Errorf("expected generation 0, got %d", gen)
	}
}

func TestTryAcquireContextCancelled(t *testing.T) {
	f := &fakeFactory{scripts: []poolScript{{rest: true}}}
	a := NewResourceAcquirer(NewPoolManager(f.create), 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := a.TryAcquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTryAcquireClosedPoolStopsEarly(t *testing.T) {
	f := &fakeFactory{scripts: []poolScript{{rest: true}}}
	m := NewPoolManager(f.create)
	a := NewResourceAcquirer(m, 10)

	p, _, _ := m.Ensure(context.Background())
	p.Close()

	lease, _, err := a.TryAcquire(context.Background())
	if err != nil || lease != nil {
		t.Fatalf("expected exhaustion, got lease=%v err=%v", lease, err)
	}
}

func TestLeaseReleaseIsIdempotent(t *testing.T) {
	f := &fakeFactory{scripts: []poolScript{{rest: true}}}
	a := NewResourceAcquirer(NewPoolManager(f.create), 3)

	lease, _, _ := a.TryAcquire(context.Background())
	lease.Release()
	lease.Release()

	if !lease.Released() {
		t.Error("lease should report released")
	}
	if _, releases, _ := f.created()[0].counts(); releases != 1 {
		t.Errorf("expected 1 release, got %d", releases)
	}

	var nilLease *Lease
	nilLease.Release()
}

func TestLeaseReleaseDiscardsDeadConnection(t *testing.T) {
	f := &fakeFactory{scripts: []poolScript{{rest: true}}}
	a := NewResourceAcquirer(NewPoolManager(f.create), 3)

	lease, _, _ := a.TryAcquire(context.Background())
	lease.Conn().(*fakeConn).alive = false
	lease.Release()

	_, releases, discards := f.created()[0].counts()
	if releases != 0 || discards != 1 {
		t.Errorf("expected discard only, got releases=%d discards=%d", releases, discards)
	}
}

func TestTryAcquireBusyPoolIsNotCounted(t *testing.T) {
	pools := &realPools{maxActive: 1, timeout: 20 * time.Millisecond}
	a := NewResourceAcquirer(NewPoolManager(pools.create), 3)

	held, _, err := a.TryAcquire(context.Background())
	if err != nil || held == nil {
		t.Fatalf("TryAcquire failed: lease=%v err=%v", held, err)
	}
	defer held.Release()

	lease, gen, err := a.TryAcquire(context.Background())
	if lease != nil {
		t.Fatal("expected no lease from a saturated pool")
	}
	if !IsBusy(err) {
		t.Errorf("expected a busy error, got %v", err)
	}
	if gen != 1 {
		t.Errorf("expected generation 1, got %d", gen)
	}
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{apperrors.ErrBorrowTimeout, true},
		{apperrors.ErrPoolExhausted, true},
		{apperrors.ErrPoolClosed, false},
		{errors.New("dial tcp: connection refused"), false},
	}
	for _, tt := range tests {
		if got := IsBusy(tt.err); got != tt.want {
			t.Errorf("IsBusy(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
