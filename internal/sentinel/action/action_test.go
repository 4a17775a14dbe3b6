package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/access"
)

func TestParse(t *testing.T) {
	for _, in := range []string{"Quarantine", "isolate", " disable usb ", "View Details"} {
		_, err := Parse(in)
		require.NoError(t, err, in)
	}
	_, err := Parse("Reboot")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestRequired(t *testing.T) {
	assert.Equal(t, []access.Permission{access.TakeActions}, Quarantine.Required())
	assert.Equal(t, []access.Permission{access.TakeActions}, Isolate.Required())
	assert.Equal(t, []access.Permission{access.TakeActions, access.DisableUsb}, DisableUsb.Required())
	assert.Equal(t, []access.Permission{access.ViewData}, ViewDetails.Required())
	assert.Nil(t, Action("Reboot").Required())

	assert.True(t, Isolate.Quarantines())
	assert.False(t, DisableUsb.Quarantines())
	assert.False(t, ViewDetails.Mutating())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Admin action 'Isolate' by Security Analyst on endpoint HR-PC-02",
		Describe(Isolate, access.SecurityAnalyst, "HR-PC-02"))
}
