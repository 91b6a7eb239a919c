package market

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVenueOf(t *testing.T) {
	assert.Equal(t, VenueShanghai, VenueOf("600519.SH"))
	assert.Equal(t, VenueShanghai, VenueOf("510300.sh"))
	assert.Equal(t, VenueShenzhen, VenueOf("000001.SZ"))
	assert.Equal(t, VenueUnknown, VenueOf("600519"))
	assert.Equal(t, VenueUnknown, VenueOf(""))
}

func TestIsETF(t *testing.T) {
	assert.True(t, IsETF("510300.SH"))
	assert.True(t, IsETF("159915.SZ"))
	assert.True(t, IsETF("588000.SH"))
	assert.False(t, IsETF("600519.SH"))
	assert.False(t, IsETF("000001.SZ"))
}

func TestDeterminePoolType(t *testing.T) {
	pool, decimals := DeterminePoolType([]string{"510300.SH", "159915.SZ"})
	assert.Equal(t, PoolETF, pool)
	assert.EqualValues(t, 3, decimals)

	pool, decimals = DeterminePoolType([]string{"510300.SH", "600519.SH"})
	assert.Equal(t, PoolStock, pool, "混合池按股票精度")
	assert.EqualValues(t, 2, decimals)

	_, decimals = DeterminePoolType(nil)
	assert.EqualValues(t, 2, decimals)
}

func TestT0List(t *testing.T) {
	l := NewT0List([]string{"511990.SH", " 511880.sh "})
	assert.True(t, l.Contains("511990.SH"))
	assert.True(t, l.Contains("511880.SH"), "大小写与空白不敏感")
	assert.False(t, l.Contains("510300.SH"))
	assert.Equal(t, 2, l.Len())

	var nilList *T0List
	assert.False(t, nilList.Contains("511990.SH"), "nil 白名单恒为 false")
}

func TestLoadT0List(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t0.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- 511990.SH\n- 511880.SH\n"), 0o644))

	l, err := LoadT0List(path)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())

	_, err = LoadT0List(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
