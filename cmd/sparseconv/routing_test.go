package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRouting(t *testing.T) {
	r, err := parseRouting("0,1; 1 ,2;0,2")
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1}, {1, 2}, {0, 2}}, r)

	r, err = parseRouting("")
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = parseRouting("3;;1")
	require.NoError(t, err)
	assert.Equal(t, [][]int{{3}, {}, {1}}, r)

	_, err = parseRouting("0,x")
	assert.Error(t, err)
}
