package execution_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/production-engine/execution"
)

func TestCanOperate(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		kind  string
		want  bool
	}{
		{"matching role", []string{"corte"}, "corte", true},
		{"one of several roles", []string{"costura", "corte"}, "corte", true},
		{"no matching role", []string{"costura"}, "corte", false},
		{"admin operates any kind", []string{"admin"}, "corte", true},
		{"empty roles", nil, "corte", false},
		{"no partial match", []string{"cort"}, "corte", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, execution.CanOperate(tt.roles, tt.kind))
		})
	}
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, execution.IsAdmin([]string{"corte", "admin"}))
	assert.False(t, execution.IsAdmin([]string{"corte"}))
	assert.False(t, execution.IsAdmin(nil))
}
