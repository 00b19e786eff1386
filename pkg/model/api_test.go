package model

import "testing"

func TestListOptions_Clamp(t *testing.T) {
	tests := []struct {
		name       string
		input      ListOptions
		max        int
		wantLimit  int
		wantOffset int
	}{
		{"defaults", ListOptions{}, MaxRunLimit, 20, 0},
		{"negative limit", ListOptions{Limit: -5}, MaxRunLimit, 20, 0},
		{"over run max", ListOptions{Limit: 200}, MaxRunLimit, 100, 0},
		{"event max", ListOptions{Limit: 200}, MaxEventLimit, 200, 0},
		{"over event max", ListOptions{Limit: 5000}, MaxEventLimit, 1000, 0},
		{"negative offset", ListOptions{Limit: 10, Offset: -3}, MaxRunLimit, 10, 0},
		{"valid", ListOptions{Limit: 50, Offset: 10}, MaxRunLimit, 50, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.input.ClampTo(tt.max)
			if tt.input.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", tt.input.Limit, tt.wantLimit)
			}
			if tt.input.Offset != tt.wantOffset {
				t.Errorf("Offset = %d, want %d", tt.input.Offset, tt.wantOffset)
			}
		})
	}

	opts := ListOptions{Limit: 500}
	opts.Clamp()
	if opts.Limit != MaxRunLimit {
		t.Errorf("Clamp() Limit = %d, want %d", opts.Limit, MaxRunLimit)
	}
}

func TestDefaultListOptions(t *testing.T) {
	opts := DefaultListOptions()
	if opts.Limit != 20 {
		t.Errorf("Limit = %d, want 20", opts.Limit)
	}
	if opts.Offset != 0 {
		t.Errorf("Offset = %d, want 0", opts.Offset)
	}
}

func TestListOptions_Page(t *testing.T) {
	tests := []struct {
		opts    ListOptions
		total   int
		hasMore bool
	}{
		{ListOptions{Limit: 10}, 5, false},
		{ListOptions{Limit: 10}, 10, false},
		{ListOptions{Limit: 10}, 11, true},
		{ListOptions{Limit: 10, Offset: 10}, 25, true},
		{ListOptions{Limit: 10, Offset: 20}, 25, false},
	}
	for _, tt := range tests {
		p := tt.opts.Page(tt.total)
		if p.Total != tt.total || p.Limit != tt.opts.Limit || p.Offset != tt.opts.Offset {
			t.Errorf("Page(%d) = %+v", tt.total, p)
		}
		if p.HasMore != tt.hasMore {
			t.Errorf("Page(%d) with offset %d: HasMore = %t, want %t", tt.total, tt.opts.Offset, p.HasMore, tt.hasMore)
		}
	}
}
