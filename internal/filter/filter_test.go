package filter

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_SmallSet_UsesHashSet(t *testing.T) {
	kws := toBytes("alpha", "beta", "gamma")
	f, err := Build(kws, 0.01, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, KindHashSet, f.Kind())
}

func TestBuild_LargeSet_UsesBloom(t *testing.T) {
	var kws [][]byte
	for i := 0; i < 2000; i++ {
		kws = append(kws, []byte(fmt.Sprintf("keyword-%d", i)))
	}
	f, err := Build(kws, 0.01, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, KindBloom, f.Kind())
}

func TestBuild_RejectsBadFPR(t *testing.T) {
	kws := toBytes("a")
	_, err := Build(kws, 0, DefaultThreshold)
	assert.Error(t, err)

	_, err = Build(kws, 1, DefaultThreshold)
	assert.Error(t, err)
}

func TestHashSet_MayContain_NoFalsePositives(t *testing.T) {
	kws := toBytes("alpha", "beta", "gamma")
	f, err := Build(kws, 0.01, DefaultThreshold)
	require.NoError(t, err)

	for _, k := range kws {
		assert.True(t, f.MayContain(k))
	}
	assert.False(t, f.MayContain([]byte("delta")))
}

func TestHashSet_RoundTrips(t *testing.T) {
	kws := toBytes("alpha", "beta", "gamma")
	f, err := Build(kws, 0.01, DefaultThreshold)
	require.NoError(t, err)

	payload := f.Marshal()
	decoded, err := UnmarshalHashSet(payload)
	require.NoError(t, err)

	for _, k := range kws {
		assert.True(t, decoded.MayContain(k))
	}
	assert.False(t, decoded.MayContain([]byte("zzz")))
}

func TestBloom_MayContain_NeverFalseNegative(t *testing.T) {
	var kws [][]byte
	for i := 0; i < 5000; i++ {
		kws = append(kws, []byte(fmt.Sprintf("kw-%d", i)))
	}
	f, err := Build(kws, 0.01, DefaultThreshold)
	require.NoError(t, err)
	require.Equal(t, KindBloom, f.Kind())

	for _, k := range kws {
		assert.True(t, f.MayContain(k), "member %s must be reported present", k)
	}
}

func TestBloom_FalsePositiveRateIsBounded(t *testing.T) {
	var kws [][]byte
	for i := 0; i < 5000; i++ {
		kws = append(kws, []byte(fmt.Sprintf("kw-%d", i)))
	}
	f, err := Build(kws, 0.01, DefaultThreshold)
	require.NoError(t, err)

	falsePositives := 0
	trials := 5000
	for i := 0; i < trials; i++ {
		probe := []byte(fmt.Sprintf("absent-%d", i))
		if f.MayContain(probe) {
			falsePositives++
		}
	}
	rate := float64(falsePositives) / float64(trials)
	assert.Less(t, rate, 0.05, "observed FPR %f should stay near target 0.01", rate)
}

func TestBloom_RoundTrips(t *testing.T) {
	var kws [][]byte
	for i := 0; i < 3000; i++ {
		kws = append(kws, []byte(fmt.Sprintf("kw-%d", i)))
	}
	f, err := Build(kws, 0.01, DefaultThreshold)
	require.NoError(t, err)

	payload := f.Marshal()
	decoded, err := UnmarshalBloom(payload)
	require.NoError(t, err)

	for _, k := range kws {
		assert.True(t, decoded.MayContain(k))
	}
}

func TestUnmarshal_DispatchesOnKind(t *testing.T) {
	kws := toBytes("a", "b")
	f, err := Build(kws, 0.01, DefaultThreshold)
	require.NoError(t, err)

	decoded, err := Unmarshal(f.Kind(), f.Marshal())
	require.NoError(t, err)
	assert.Equal(t, f.Kind(), decoded.Kind())
}

func TestUnmarshal_UnknownKind_Errors(t *testing.T) {
	_, err := Unmarshal(Kind(99), nil)
	assert.Error(t, err)
}

func toBytes(ss ...string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}
