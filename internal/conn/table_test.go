package conn

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable_Append(t *testing.T) {
	table := NewTable("x", "y")
	table.Append(1)
	table.Append("a", 2.5)

	assert.Equal(t, 2, table.Len())
	assert.Equal(t, []any{1, "a"}, table.Column("x"))
	assert.Equal(t, []any{nil, 2.5}, table.Column("y"))
	assert.Nil(t, table.Column("z"))
	assert.Equal(t, -1, table.Index("z"))
}

func TestNilTableLen(t *testing.T) {
	var table *Table
	assert.Equal(t, 0, table.Len())
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{"float", 1.5, 1.5, true},
		{"int32", int32(3), 3, true},
		{"uint64", uint64(4), 4, true},
		{"big", big.NewInt(5), 5, true},
		{"string", "5", 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToFloat(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ab", normalize([]byte("ab")))
	assert.Equal(t, int64(7), normalize(big.NewInt(7)))
	assert.Equal(t, 1, normalize(1))
}
