package workflow

import "testing"

func TestTotalBatchCount(t *testing.T) {
	cases := []struct {
		totalItems, batchSize, want int
	}{
		{0, 100, 0},
		{1, 100, 1},
		{100, 100, 1},
		{101, 100, 2},
		{250, 100, 3},
		{250, 0, 1},
		{250, -5, 1},
	}
	for _, c := range cases {
		if got := totalBatchCount(c.totalItems, c.batchSize); got != c.want {
			t.Fatalf("totalBatchCount(%d, %d) = %d, want %d", c.totalItems, c.batchSize, got, c.want)
		}
	}
}

func TestBatchWindow(t *testing.T) {
	cases := []struct {
		n, batch, size     int
		wantStart, wantEnd int
	}{
		{250, 1, 100, 0, 100},
		{250, 2, 100, 100, 200},
		{250, 3, 100, 200, 250},
		{250, 4, 100, 0, 0},
		{0, 1, 100, 0, 0},
		{10, 1, 0, 0, 10},
	}
	for _, c := range cases {
		start, end := batchWindow(c.n, c.batch, c.size)
		if start != c.wantStart || end != c.wantEnd {
			t.Fatalf("batchWindow(%d, %d, %d) = [%d, %d), want [%d, %d)",
				c.n, c.batch, c.size, start, end, c.wantStart, c.wantEnd)
		}
	}
}
