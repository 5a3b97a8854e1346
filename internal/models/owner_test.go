package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOwnerType(t *testing.T) {
	tests := []struct {
		input   string
		want    OwnerType
		wantErr bool
	}{
		{"news", OwnerNews, false},
		{"NEWS", OwnerNews, false},
		{" product ", OwnerProduct, false},
		{"setting", OwnerSetting, false},
		{"page", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOwnerType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewOwner_RejectsZeroID(t *testing.T) {
	_, err := NewOwner("news", 0)
	assert.Error(t, err)
}

func TestOwner_Key(t *testing.T) {
	owner, err := NewOwner("news", 42)
	require.NoError(t, err)

	assert.Equal(t, "news:42", owner.Key())
	assert.Equal(t, "news:42", owner.String())
}

func TestAttachment_Owner(t *testing.T) {
	att := &Attachment{}
	_, ok := att.Owner()
	assert.False(t, ok)

	objectType := "news"
	objectID := uint(42)
	att.ObjectType = &objectType
	att.ObjectID = &objectID

	owner, ok := att.Owner()
	require.True(t, ok)
	assert.Equal(t, Owner{Type: OwnerNews, ID: 42}, owner)
	assert.True(t, att.IsOwnedBy(Owner{Type: OwnerNews, ID: 42}))
	assert.False(t, att.IsOwnedBy(Owner{Type: OwnerNews, ID: 43}))
	assert.False(t, att.IsOwnedBy(Owner{Type: OwnerPost, ID: 42}))
}
