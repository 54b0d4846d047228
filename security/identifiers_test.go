package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRoomID(t *testing.T) {
	tests := []struct {
		roomID string
		want   bool
	}{
		{"team-standup_01", true},
		{"abc", true},
		{strings.Repeat("a", 64), true},
		{"ab", false},
		{strings.Repeat("a", 65), false},
		{"", false},
		{"room with spaces", false},
		{"room/slash", false},
		{"sala.reunión", false},
	}

	for _, tt := range tests {
		t.Run(tt.roomID, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateRoomID(tt.roomID), "roomID=%q", tt.roomID)
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a.b-c", true},
		{"alice", true},
		{"alice_smith", true},
		{"a1.b2.c3", true},
		{strings.Repeat("a", 50), true},
		{"ab", false},
		{strings.Repeat("a", 51), false},
		{"a@b", false},
		{".alice", false},
		{"alice.", false},
		{"a..b", false},
		{"-alice", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateUsername(tt.name), "username=%q", tt.name)
		})
	}
}
