package repository

import "testing"

func TestNormalizePageRequest(t *testing.T) {
	tests := []struct {
		name string
		in   PageRequest
		want PageRequest
	}{
		{name: "zero value gets defaults", in: PageRequest{}, want: PageRequest{Page: DefaultPage, PageSize: DefaultPageSize}},
		{name: "negative page floored", in: PageRequest{Page: -3, PageSize: 15}, want: PageRequest{Page: DefaultPage, PageSize: 15}},
		{name: "zero size gets default", in: PageRequest{Page: 4, PageSize: 0}, want: PageRequest{Page: 4, PageSize: DefaultPageSize}},
		{name: "oversized capped", in: PageRequest{Page: 1, PageSize: MaxPageSize * 2}, want: PageRequest{Page: 1, PageSize: MaxPageSize}},
		{name: "in range untouched", in: PageRequest{Page: 7, PageSize: 50}, want: PageRequest{Page: 7, PageSize: 50}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizePageRequest(tc.in); got != tc.want {
				t.Fatalf("normalizePageRequest(%+v) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}

func TestCalcTotalPages(t *testing.T) {
	tests := []struct {
		total    int64
		pageSize int
		want     int
	}{
		{total: 0, pageSize: 20, want: 0},
		{total: 5, pageSize: 0, want: 0},
		{total: 1, pageSize: 20, want: 1},
		{total: 40, pageSize: 20, want: 2},
		{total: 41, pageSize: 20, want: 3},
	}
	for _, tc := range tests {
		if got := calcTotalPages(tc.total, tc.pageSize); got != tc.want {
			t.Fatalf("calcTotalPages(%d, %d) = %d, want %d", tc.total, tc.pageSize, got, tc.want)
		}
	}
}

func FuzzNormalizePageRequest(f *testing.F) {
	f.Add(0, 0)
	f.Add(-10, -10)
	f.Add(3, MaxPageSize+1)
	f.Add(1<<30, 1<<30)

	f.Fuzz(func(t *testing.T, page, pageSize int) {
		got := normalizePageRequest(PageRequest{Page: page, PageSize: pageSize})
		if got.Page < 1 {
			t.Fatalf("page must be >= 1, got %d", got.Page)
		}
		if got.PageSize < 1 || got.PageSize > MaxPageSize {
			t.Fatalf("page_size out of bounds: %d", got.PageSize)
		}
	})
}

func FuzzCalcTotalPages(f *testing.F) {
	f.Add(int64(0), 0)
	f.Add(int64(41), 20)
	f.Add(int64(1<<40), 1)

	f.Fuzz(func(t *testing.T, total int64, pageSize int) {
		got := calcTotalPages(total, pageSize)
		if total <= 0 || pageSize <= 0 {
			if got != 0 {
				t.Fatalf("expected 0 pages, got %d (total=%d pageSize=%d)", got, total, pageSize)
			}
			return
		}
		if got < 1 {
			t.Fatalf("expected at least one page (total=%d pageSize=%d)", total, pageSize)
		}
		if prev := int64(got-1) * int64(pageSize); prev >= total {
			t.Fatalf("pages=%d over-counts total=%d pageSize=%d", got, total, pageSize)
		}
		if int64(got)*int64(pageSize) < total {
			t.Fatalf("pages=%d under-counts total=%d pageSize=%d", got, total, pageSize)
		}
	})
}
