package uniforms_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shadermp/engine/gpu"
	"github.com/shadermp/engine/gpu/gpumock"
	"github.com/shadermp/engine/uniforms"
)

func TestResolveQueriesEveryWellKnownUniform(t *testing.T) {
	m := gpumock.New()
	_, _, _ = m.CompileShader("x", gpu.FragmentStage)
	p, _, _ := m.LinkProgram(1, 2)

	locs := uniforms.Resolve(m, p, nil)

	assert.NotEqual(t, gpu.NoLocation, locs.Time)
	assert.NotEqual(t, gpu.NoLocation, locs.Resolution)
	assert.NotEqual(t, gpu.NoLocation, locs.ChannelResolution)
	for i := 0; i < 4; i++ {
		assert.NotEqual(t, gpu.NoLocation, locs.Channel[i])
	}
}

func TestResolveIsDeterministicAcrossPrograms(t *testing.T) {
	m := gpumock.New()
	p1, _, _ := m.LinkProgram(1, 2)
	p2, _, _ := m.LinkProgram(3, 4)

	a := uniforms.Resolve(m, p1, nil)
	b := uniforms.Resolve(m, p2, nil)

	assert.Equal(t, a.Time, b.Time)
	assert.Equal(t, a.Channel, b.Channel)
}

func TestResolveEmptyNameYieldsNoLocation(t *testing.T) {
	m := gpumock.New()
	assert.Equal(t, gpu.NoLocation, m.UniformLocationOf(0, ""))
}

func TestResolveAppliesNameMapperForRenamedUniforms(t *testing.T) {
	m := gpumock.New()
	p, _, _ := m.LinkProgram(1, 2)

	renamed := map[string]string{"iTime": "_utime42"}
	resolveName := func(n string) string {
		if mapped, ok := renamed[n]; ok {
			return mapped
		}
		return n
	}

	mapped := uniforms.Resolve(m, p, resolveName)
	plain := uniforms.Resolve(m, p, nil)

	// gpumock.UniformLocationOf derives a location deterministically
	// from the queried name, so a renamed query must resolve to a
	// different location than the unrenamed one.
	assert.NotEqual(t, plain.Time, mapped.Time)
}

func TestNoProducerSentinel(t *testing.T) {
	var idx uniforms.ProducerIndex
	assert.Equal(t, [4]int{0, 0, 0, 0}, [4]int(idx))
	idx[0] = uniforms.NoProducer
	assert.Equal(t, -1, idx[0])
}
