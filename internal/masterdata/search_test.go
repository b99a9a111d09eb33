package masterdata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeSearch(t *testing.T) {
	require.Equal(t, "tran thi huong", NormalizeSearch("Trần Thị Hương"))
	require.Equal(t, "dao", NormalizeSearch("Đào"))
	require.Equal(t, "creme brulee", NormalizeSearch("  Crème Brûlée "))
	require.Equal(t, "plain", NormalizeSearch("plain"))
	require.Equal(t, "", NormalizeSearch("   "))
}
