package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringify(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"nil", nil, "null"},
		{"string verbatim", String(`say "hi"`), `say "hi"`},
		{"int", Int(10), "10"},
		{"float", Float(2.5), "2.5"},
		{"bool", Bool(true), "true"},
		{"array", Array{String("a"), Int(1)}, `["a", 1]`},
		{"object", Object{{"b", Bool(false)}, {"a", Null{}}}, `{"b": false, "a": null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Stringify(tt.input))
		})
	}
}

func TestIndent(t *testing.T) {
	out, err := Indent(Object{{"a", Array{Int(1)}}, {"b", String("<x>")}})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": [\n    1\n  ],\n  \"b\": \"<x>\"\n}", out)
}
