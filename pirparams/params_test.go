package pirparams

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReferenceParamsValidate(t *testing.T) {
	require.NoError(t, Reference.Validate())
}

func TestValidateRejectsNonPowerOfTwoD(t *testing.T) {
	bad := Reference
	bad.D = 2047
	require.ErrorIs(t, bad.Validate(), ErrBadParams)
}

func TestBFVLiteralMatchesParams(t *testing.T) {
	lit := Reference.BFVLiteral()
	require.Equal(t, uint64(Reference.P), lit.T)
	require.Equal(t, Reference.LogD(), lit.LogN)
	require.Len(t, lit.LogQ, 1)
}

func TestCheckBudgetPassesForReferenceProfile(t *testing.T) {
	nb := NoiseBudget{
		FreshStdDev:        Reference.Sigma,
		Automorphisms:      11, // log2(d1) for a d1 up to 2048
		GridMultiplies:     1024,
		PackingKeySwitches: 2,
	}
	require.NoError(t, Reference.CheckBudget(nb))
}

func TestCheckBudgetRejectsExcessiveComposition(t *testing.T) {
	nb := NoiseBudget{
		FreshStdDev:        Reference.Sigma,
		Automorphisms:      100000,
		GridMultiplies:     1 << 20,
		PackingKeySwitches: 2,
	}
	err := Reference.CheckBudget(nb)
	require.ErrorIs(t, err, ErrNoiseBudget)
}

func TestLookupReturnsRegisteredProfile(t *testing.T) {
	got, ok := Lookup("reference")
	require.True(t, ok)
	require.Equal(t, Reference, got)

	_, ok = Lookup("does-not-exist")
	require.False(t, ok)
}

func TestRegisterAddsNamedProfile(t *testing.T) {
	custom := Reference
	custom.D = 4096
	Register("custom-test-profile", custom)
	got, ok := Lookup("custom-test-profile")
	require.True(t, ok)
	require.Equal(t, uint32(4096), got.D)
}
