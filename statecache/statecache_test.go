package statecache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shadermp/engine/gpu"
	"github.com/shadermp/engine/gpu/gpumock"
	"github.com/shadermp/engine/statecache"
)

func TestRedundantProgramBindIsElided(t *testing.T) {
	mock := gpumock.New()
	c := statecache.New(mock)

	c.UseProgram(7)
	c.UseProgram(7)
	c.UseProgram(7)

	var uses int
	for _, call := range mock.Calls {
		if call.Name == "UseProgram" {
			uses++
		}
	}
	assert.Equal(t, 1, uses)
	assert.Equal(t, 3, c.Stats.Attempted["program"])
	assert.Equal(t, 2, c.Stats.Avoided["program"])
}

func TestChangedProgramIsNotElided(t *testing.T) {
	mock := gpumock.New()
	c := statecache.New(mock)

	c.UseProgram(1)
	c.UseProgram(2)

	var uses int
	for _, call := range mock.Calls {
		if call.Name == "UseProgram" {
			uses++
		}
	}
	assert.Equal(t, 2, uses)
}

func TestRedundantViewportIsElided(t *testing.T) {
	mock := gpumock.New()
	c := statecache.New(mock)

	c.SetViewport(0, 0, 800, 600)
	c.SetViewport(0, 0, 800, 600)
	c.SetViewport(0, 0, 400, 300)

	var calls int
	for _, call := range mock.Calls {
		if call.Name == "SetViewport" {
			calls++
		}
	}
	assert.Equal(t, 2, calls)
}

func TestUniformWithinEpsilonIsElidedPerProgram(t *testing.T) {
	mock := gpumock.New()
	c := statecache.New(mock)

	c.UseProgram(1)
	c.SetUniform(5, gpu.UniformValue{Kind: gpu.Float1, F1: 1.0})
	c.SetUniform(5, gpu.UniformValue{Kind: gpu.Float1, F1: 1.0 + 1e-6})

	var uploads int
	for _, call := range mock.Calls {
		if call.Name == "SetUniform" {
			uploads++
		}
	}
	assert.Equal(t, 1, uploads)
}

func TestUniformOutsideEpsilonIsNotElided(t *testing.T) {
	mock := gpumock.New()
	c := statecache.New(mock)

	c.UseProgram(1)
	c.SetUniform(5, gpu.UniformValue{Kind: gpu.Float1, F1: 1.0})
	c.SetUniform(5, gpu.UniformValue{Kind: gpu.Float1, F1: 2.0})

	var uploads int
	for _, call := range mock.Calls {
		if call.Name == "SetUniform" {
			uploads++
		}
	}
	assert.Equal(t, 2, uploads)
}

func TestSameUniformValueOnDifferentProgramIsNotElided(t *testing.T) {
	mock := gpumock.New()
	c := statecache.New(mock)

	c.UseProgram(1)
	c.SetUniform(5, gpu.UniformValue{Kind: gpu.Float1, F1: 1.0})
	c.UseProgram(2)
	c.SetUniform(5, gpu.UniformValue{Kind: gpu.Float1, F1: 1.0})

	var uploads int
	for _, call := range mock.Calls {
		if call.Name == "SetUniform" {
			uploads++
		}
	}
	assert.Equal(t, 2, uploads)
}

func TestResetClearsCountersNotCachedState(t *testing.T) {
	mock := gpumock.New()
	c := statecache.New(mock)

	c.UseProgram(1)
	c.UseProgram(1)
	assert.Equal(t, 1, c.Stats.Avoided["program"])

	c.Stats.Reset()
	assert.Equal(t, 0, c.Stats.Avoided["program"])

	c.UseProgram(1)
	assert.Equal(t, 1, c.Stats.Avoided["program"])
}
