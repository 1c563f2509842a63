package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func TestRoundHalfUpAtScale(t *testing.T) {
	cases := map[string]string{
		"10.005":  "10.01",
		"10.004":  "10.00",
		"10":      "10",
		"0.125":   "0.13",
		"-10.005": "-10.01",
	}
	for in, want := range cases {
		got := Round(dec(t, in))
		assert.True(t, got.Equal(dec(t, want)), "Round(%s) = %s, want %s", in, got, want)
	}
}

func TestPercentDoesNotRound(t *testing.T) {
	// 1% of 33.33 keeps full precision until the caller rounds.
	got := Percent(dec(t, "33.33"), dec(t, "1"))
	assert.True(t, got.Equal(dec(t, "0.3333")), "got %s", got)
	assert.True(t, Round(got).Equal(dec(t, "0.33")))
}

func TestClamp(t *testing.T) {
	min := dec(t, "5")
	max := dec(t, "50")

	assert.True(t, Clamp(dec(t, "2"), &min, &max).Equal(min))
	assert.True(t, Clamp(dec(t, "75"), &min, &max).Equal(max))
	assert.True(t, Clamp(dec(t, "20"), &min, &max).Equal(dec(t, "20")))
	// Open bounds pass the amount through unchanged.
	assert.True(t, Clamp(dec(t, "75"), nil, nil).Equal(dec(t, "75")))
}

func TestFloorAtZero(t *testing.T) {
	assert.True(t, FloorAtZero(dec(t, "-4.20")).Equal(Zero()))
	assert.True(t, FloorAtZero(dec(t, "4.20")).Equal(dec(t, "4.20")))
	assert.False(t, IsPositive(Zero()))
	assert.True(t, IsPositive(dec(t, "0.01")))
}
