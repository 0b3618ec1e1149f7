package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRole_IsValid(t *testing.T) {
	tests := []struct {
		role  UserRole
		valid bool
	}{
		{RoleViewer, true},
		{RoleAdmin, true},
		{"invalid", false},
		{"", false},
		{"ADMIN", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.role.IsValid())
		})
	}
}

func TestUser_Validate(t *testing.T) {
	assert.Error(t, (&User{}).Validate())
	assert.Error(t, (&User{Username: "bob", Role: "root"}).Validate())
	assert.NoError(t, (&User{Username: "bob", Role: string(RoleViewer)}).Validate())
}

func TestPasswordHashing(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	long := make([]byte, MaxPasswordLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = HashPassword(string(long))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, VerifyPassword("correct horse", hash))
	assert.False(t, VerifyPassword("wrong horse", hash))
}

func TestGetOrGenerateAdminPassword(t *testing.T) {
	t.Setenv(EnvAdminInitialPassword, "from-the-env")
	pw, err := GetOrGenerateAdminPassword()
	require.NoError(t, err)
	assert.Equal(t, "from-the-env", pw)

	t.Setenv(EnvAdminInitialPassword, "")
	pw, err = GetOrGenerateAdminPassword()
	require.NoError(t, err)
	assert.Len(t, pw, 24)
}

func TestDefaultAdminUser(t *testing.T) {
	u := DefaultAdminUser("hash")
	assert.Equal(t, AdminUsername, u.Username)
	assert.True(t, u.IsAdmin())
	assert.True(t, u.Enabled)
	assert.NotEmpty(t, u.ID)
}

func TestListEncoding(t *testing.T) {
	var p Pool
	disks, err := p.GetDisks()
	require.NoError(t, err)
	assert.Empty(t, disks)

	require.NoError(t, p.SetDisks([]string{"malloc:///disk0?size_mb=64"}))
	disks, err = p.GetDisks()
	require.NoError(t, err)
	assert.Equal(t, []string{"malloc:///disk0?size_mb=64"}, disks)

	var n Nexus
	require.NoError(t, n.SetChildren(nil))
	assert.Equal(t, "[]", n.Children)

	n.Children = "not json"
	_, err = n.GetChildren()
	assert.Error(t, err)
}

func TestSnapshotEmpty(t *testing.T) {
	var s *Snapshot
	assert.True(t, s.Empty())
	assert.True(t, (&Snapshot{}).Empty())
	assert.False(t, (&Snapshot{Pools: []*Pool{{Name: "p"}}}).Empty())
}
