package utilities

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerline/propops/internal/datastore/entities"
)

func TestSuggestType(t *testing.T) {
	t.Parallel()

	types := []entities.UtilityType{
		{ID: 1, Key: "water", Label: "Water"},
		{ID: 2, Key: "electric", Label: "Electric"},
		{ID: 3, Key: "trash", Label: "Trash"},
		{ID: 4, Key: "landscaping", Label: "Landscaping"},
	}

	tests := []struct {
		name    string
		account string
		want    string
	}{
		{"exact word", "Water - City of Oakland", "water"},
		{"synonym", "PG&E Electricity", "electric"},
		{"typo", "Watr Utility", "water"},
		{"garbage synonym", "Garbage Pickup", "trash"},
		{"custom label", "Landscaping Services", "landscaping"},
		{"no match", "Office Supplies", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SuggestType(tt.account, types)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.Equal(t, tt.want, got.Key)
			}
		})
	}
}
