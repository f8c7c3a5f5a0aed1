package changesource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestNewFilter(t *testing.T) {
	tests := []struct {
		name   string
		id     *ID
		owner  *MasterID
		active *bool
		want   Filter
	}{
		{"no criteria", nil, nil, nil, All{}},
		{"id only", ptr(ID(3)), nil, nil, ByID{ID: 3}},
		{"id ignores owner and active", ptr(ID(3)), ptr(MasterID("m1")), ptr(false), ByID{ID: 3}},
		{"owner only", nil, ptr(MasterID("m1")), nil, ByOwner{Master: "m1"}},
		{"owner and active", nil, ptr(MasterID("m1")), ptr(true), ByOwner{Master: "m1"}},
		{"owner and inactive", nil, ptr(MasterID("m1")), ptr(false), Empty{}},
		{"active", nil, nil, ptr(true), ByActive{Active: true}},
		{"inactive", nil, nil, ptr(false), ByActive{Active: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewFilter(tt.id, tt.owner, tt.active))
		})
	}
}

func TestViewActive(t *testing.T) {
	assert.False(t, View{ID: 1, Name: "a"}.Active())
	assert.True(t, View{ID: 1, Name: "a", Owner: "m1"}.Active())
}

func TestParseID(t *testing.T) {
	id, err := ParseID("42")
	assert.NoError(t, err)
	assert.Equal(t, ID(42), id)
	assert.Equal(t, "42", id.String())

	for _, bad := range []string{"", "abc", "0", "-1"} {
		_, err := ParseID(bad)
		assert.Error(t, err, "ParseID(%q)", bad)
	}
}

func TestClaimResult(t *testing.T) {
	assert.Equal(t, "claimed", Claimed.String())
	assert.Equal(t, "already_claimed", AlreadyClaimed.String())
	assert.Equal(t, "unknown", ClaimResult(0).String())

	assert.NoError(t, Claimed.Err())
	assert.ErrorIs(t, AlreadyClaimed.Err(), ErrAlreadyClaimed)
}
