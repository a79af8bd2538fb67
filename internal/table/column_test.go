package table

import (
	"slices"
	"testing"
)

func TestHeaderIndicator(t *testing.T) {
	cols := []Column{
		{Title: "Name", Sort: []string{"name", "wear"}},
		{Title: "Float", Sort: []string{"wear"}},
		{Title: "Select"},
	}

	tests := []struct {
		name string
		lead string
		dir  Direction
		want []string
	}{
		{"ascending", "name", Ascending, []string{"Name ▲", "Float", "Select"}},
		{"descending", "wear", Descending, []string{"Name", "Float ▼", "Select"}},
		{"unsorted", "name", Unsorted, []string{"Name", "Float", "Select"}},
		{"no lead", "", Ascending, []string{"Name", "Float", "Select"}},
		{"unknown lead", "seed", Ascending, []string{"Name", "Float", "Select"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HeaderIndicator(cols, tt.lead, tt.dir); !slices.Equal(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
