package commands

import (
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/krxvalue/internal/contracts"
)

func TestFormatRow_PadsByDisplayWidth(t *testing.T) {
	widths := []int{8, 10, 6}

	ascii := formatRow([]string{"005930", "Samsung", "1.23"}, widths)
	hangul := formatRow([]string{"005930", "삼성전자", "1.23"}, widths)

	assert.Equal(t, runewidth.StringWidth(ascii), runewidth.StringWidth(hangul))
	assert.Equal(t, "005930    삼성전자    1.23", hangul)
}

func TestFormatRow_TruncatesWideCells(t *testing.T) {
	row := formatRow([]string{"에이치엘비생명과학"}, []int{8})
	assert.LessOrEqual(t, runewidth.StringWidth(row), 8)
}

func TestParseBound(t *testing.T) {
	v, err := parseBound("per-max", "")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = parseBound("per-max", " 12.5 ")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 12.5, *v)

	_, err = parseBound("pbr-max", "cheap")
	assert.ErrorIs(t, err, contracts.ErrInvalidParameter)
	assert.Contains(t, err.Error(), "--pbr-max")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "+12.50%", formatPercent(0.125))
	assert.Equal(t, "-3.00%", formatPercent(-0.03))
	assert.Equal(t, "-", formatOptional(nil))

	x := 1.5
	assert.Equal(t, "1.50", formatOptional(&x))
}

func TestEokToWon(t *testing.T) {
	won, err := eokToWon("cap-min-eok", 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(500_000_000_000), won)

	won, err = eokToWon("cap-max-eok", maxEok)
	require.NoError(t, err)
	assert.Positive(t, won)

	for _, bad := range []int64{-1, maxEok + 1, 100_000_000_000} {
		_, err := eokToWon("cap-max-eok", bad)
		require.ErrorIs(t, err, contracts.ErrInvalidParameter)
		assert.Contains(t, err.Error(), "--cap-max-eok")
	}
}
