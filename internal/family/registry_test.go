package family

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultChains(t *testing.T) {
	r, err := NewRegistry(nil)
	require.NoError(t, err)

	require.Equal(t, []Family{ZICP, CPLM, LM}, r.Chain(ZICP))
	require.Equal(t, []Family{ZACP, CPLM, LM}, r.Chain(ZACP))
	require.Equal(t, []Family{CPLM, LM}, r.Chain(CPLM))
	require.Equal(t, []Family{LM}, r.Chain(LM))
}

func TestOverrideCutsChain(t *testing.T) {
	r, err := NewRegistry(map[Family]Family{CPLM: None})
	require.NoError(t, err)
	require.Equal(t, []Family{ZICP, CPLM}, r.Chain(ZICP))
}

func TestOverrideRejectsLoop(t *testing.T) {
	_, err := NewRegistry(map[Family]Family{LM: ZICP})
	require.Error(t, err)
	require.Contains(t, err.Error(), "loops")

	_, err = NewRegistry(map[Family]Family{CPLM: CPLM})
	require.Error(t, err)
}

func TestParse(t *testing.T) {
	f, err := Parse("zicp")
	require.NoError(t, err)
	require.Equal(t, ZICP, f)

	f, err = Parse("none")
	require.NoError(t, err)
	require.Equal(t, None, f)

	_, err = Parse("negbin")
	require.Error(t, err)
}

func TestTraits(t *testing.T) {
	r, err := NewRegistry(nil)
	require.NoError(t, err)
	require.True(t, r.Traits(ZACP).PositiveResponse)
	require.False(t, r.Traits(ZACP).MixedEffects)
	require.True(t, r.Traits(ZICP).ZeroInflated)
	require.False(t, r.Traits(CPLM).ZeroInflated)
}
