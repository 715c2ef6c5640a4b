package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidPhone(t *testing.T) {
	for _, p := range []string{"9876543210", "6000000000", "7123456789"} {
		assert.True(t, ValidPhone(p), p)
	}
	for _, p := range []string{"5876543210", "987654321", "98765432101", "98765abcde", ""} {
		assert.False(t, ValidPhone(p), p)
	}
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("rahul@example.com"))
	assert.False(t, ValidEmail("rahul@localhost"))
	assert.False(t, ValidEmail("Rahul <rahul@example.com>"))
	assert.False(t, ValidEmail("not-an-email"))
}

func TestValidGenderAndBloodGroup(t *testing.T) {
	assert.True(t, ValidGender("Other"))
	assert.False(t, ValidGender("male"))
	for _, g := range BloodGroups() {
		assert.True(t, ValidBloodGroup(g), g)
	}
	assert.False(t, ValidBloodGroup("C+"))
}
