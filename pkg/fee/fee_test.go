package fee

import (
	"errors"
	"testing"
)

func TestServiceFeeTiers(t *testing.T) {
	for n := 0; n < 200; n++ {
		got := ServiceFee(n)
		want := 0
		if n >= 50 {
			want = 10
		}
		if got != want {
			t.Fatalf("ServiceFee(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestTotalAddsFee(t *testing.T) {
	for _, price := range []int{0, 1, 250, 500, 1999} {
		for _, serviceFee := range []int{0, 10} {
			if got := Total(price, serviceFee); got != price+serviceFee {
				t.Fatalf("Total(%d, %d) = %d", price, serviceFee, got)
			}
		}
	}
}

func TestComputeAtThreshold(t *testing.T) {
	price := 500
	tests := []struct {
		confirmed int
		fee       int
		total     int
	}{
		{confirmed: 49, fee: 0, total: 500},
		{confirmed: 50, fee: 10, total: 510},
	}
	for _, tc := range tests {
		q, err := Compute(&price, tc.confirmed)
		if err != nil {
			t.Fatalf("compute: %v", err)
		}
		if q.ServiceFee != tc.fee || q.TotalPrice != tc.total || q.BasePrice != price {
			t.Fatalf("confirmed=%d: got %+v", tc.confirmed, q)
		}
	}
}

func TestComputeWithoutSlot(t *testing.T) {
	if _, err := Compute(nil, 10); !errors.Is(err, ErrNoSlotSelected) {
		t.Fatalf("expected ErrNoSlotSelected, got %v", err)
	}
}
