package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	var nilPtr *int
	var nilFunc func()
	n := 1

	tests := []struct {
		name    string
		deps    []any
		wantErr bool
	}{
		{"no deps", nil, false},
		{"set deps", []any{&n, "name", 3, func() {}}, false},
		{"nil interface", []any{&n, nil}, true},
		{"nil pointer", []any{nilPtr}, true},
		{"nil func", []any{nilFunc}, true},
		{"empty string", []any{""}, true},
		{"zero int", []any{0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate("component", tt.deps...)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
