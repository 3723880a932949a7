package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShouldUpdate(t *testing.T) {
	for _, tc := range []struct {
		name     string
		current  VarType
		proposed VarType
		exp      bool
	}{
		{"unknown to base", Unknown, Integer, true},
		{"base to container", Integer, PointerToIntVec, true},
		{"container to base", PointerToIntVec, Integer, false},
		{"equal", PointerToString, PointerToString, true},
		{"pointer to const pointer", PointerToIntList, ConstIntList, true},
		{"const pointer downgrade", ConstIntList, PointerToIntList, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.exp, ShouldUpdate(tc.current, tc.proposed))
		})
	}
}

func TestIsConstList(t *testing.T) {
	require.True(t, ConstIntList.IsConstList())
	require.True(t, (Const | PointerTo | List | Any).IsConstList())
	require.False(t, PointerToIntList.IsConstList())
	require.False(t, (Const | List).IsConstList())
}

func TestString(t *testing.T) {
	require.Equal(t, "UNKNOWN", Unknown.String())
	require.Equal(t, "POINTER_TO|LIST|INTEGER", PointerToIntList.String())
	require.Equal(t, "CONST|POINTER_TO|LIST|FLOAT", ConstFloatList.String())
}
