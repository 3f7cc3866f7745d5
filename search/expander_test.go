package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartialNames(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "four tokens",
			input: "iPhone 12 128GB Purple",
			want:  []string{"iPhone 12 128GB Purple", "iPhone 12 128GB", "iPhone 12"},
		},
		{
			name:  "two tokens",
			input: "Galaxy S21",
			want:  []string{"Galaxy S21"},
		},
		{
			name:  "keeps inner spacing",
			input: "Redmi  Note 12",
			want:  []string{"Redmi  Note 12", "Redmi  Note"},
		},
		{
			name:  "trailing space is dropped",
			input: "Pixel 8 Pro ",
			want:  []string{"Pixel 8 Pro", "Pixel 8"},
		},
		{name: "single token", input: "iPhone", want: nil},
		{name: "empty", input: "", want: nil},
		{name: "blank", input: "   \t ", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PartialNames(tt.input))
		})
	}
}

func TestPartialNames_Properties(t *testing.T) {
	inputs := []string{
		"iPhone 12 128GB Purple",
		"Ноутбук Lenovo IdeaPad 3 15ITL6 Arctic Grey",
		"a b",
		"Samsung  Galaxy\tA54 5G 8/256GB Black",
	}

	for _, in := range inputs {
		phrases := PartialNames(in)
		tokens := TokenCount(in)

		assert.Len(t, phrases, tokens-1, in)
		prev := tokens + 1
		for _, p := range phrases {
			assert.True(t, strings.HasPrefix(in, p), "%q is not a prefix of %q", p, in)
			n := TokenCount(p)
			assert.Less(t, n, prev)
			assert.GreaterOrEqual(t, n, 2)
			prev = n
		}
	}
}

func TestPartialNames_Restartable(t *testing.T) {
	in := "Apple Watch SE 40mm"
	assert.Equal(t, PartialNames(in), PartialNames(in))
}
