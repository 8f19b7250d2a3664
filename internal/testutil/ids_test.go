package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDGenerator_Increments(t *testing.T) {
	gen := NewSequentialIDGenerator("push")

	assert.Equal(t, "push-0001", gen.Generate())
	assert.Equal(t, "push-0002", gen.Generate())
	assert.Equal(t, "push-0003", gen.Generate())
}

func TestSequentialIDGenerator_EmptyPrefixDefault(t *testing.T) {
	gen := NewSequentialIDGenerator("")

	assert.Equal(t, "patch-0001", gen.Generate())
}

func TestSequentialIDGenerator_IndependentInstances(t *testing.T) {
	a := NewSequentialIDGenerator("a")
	b := NewSequentialIDGenerator("b")

	a.Generate()
	a.Generate()

	assert.Equal(t, "b-0001", b.Generate())
	assert.Equal(t, "a-0003", a.Generate())
}
