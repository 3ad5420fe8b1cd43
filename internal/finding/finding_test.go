package finding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityRank(t *testing.T) {
	tests := []struct {
		p    Priority
		want int
	}{
		{P0, 0},
		{P1, 1},
		{P2, 2},
		{P3, 3},
		{Priority("P9"), 99},
		{Priority(""), 99},
	}
	for _, tt := range tests {
		t.Run(string(tt.p), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Rank())
		})
	}
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority(" p1 ")
	require.NoError(t, err)
	assert.Equal(t, P1, p)

	_, err = ParsePriority("high")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	ok := Finding{Priority: P0, Category: MissingImport, File: "a.py", Description: "d", Remediation: "r"}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.Priority = "P7"
	bad.Description = " "
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid priority")
	assert.Contains(t, err.Error(), "empty description")

	zero := ok
	zero.Line = At(0)
	assert.Error(t, zero.Validate())
}

func TestLocation(t *testing.T) {
	f := Finding{File: "pkg/a.py"}
	assert.Equal(t, "pkg/a.py", f.Location())
	f.Line = At(12)
	assert.Equal(t, "pkg/a.py:12", f.Location())
}
