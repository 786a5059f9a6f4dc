package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskReference(t *testing.T) {
	assert.Equal(t, "hosted_****WXYZ", MaskReference("hosted_01J9ZABCWXYZ"))
	assert.Equal(t, "manual_****", MaskReference("manual_42"))
	assert.Equal(t, "****6789", MaskReference("123456789"))
	assert.Equal(t, "", MaskReference("  "))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a****@club.example", MaskEmail("ana@club.example"))
	assert.Equal(t, "****", MaskEmail("not-an-email"))
}

func TestFieldsMasksByKey(t *testing.T) {
	masked := Fields(map[string]any{
		"payment_ref":    "hosted_01J9ZABCWXYZ",
		"member_email":   "ana@club.example",
		"webhook_secret": "whsec_abcdef",
		"attempts":       3,
		"nested":         map[string]any{"payment_ref": "manual_1"},
		" ":              "dropped",
	})

	assert.Equal(t, "hosted_****WXYZ", masked["payment_ref"])
	assert.Equal(t, "a****@club.example", masked["member_email"])
	assert.Equal(t, "****", masked["webhook_secret"])
	assert.Equal(t, "****", masked["attempts"])
	assert.Equal(t, map[string]any{"payment_ref": "manual_****"}, masked["nested"])
	assert.NotContains(t, masked, " ")
	assert.Nil(t, Fields(nil))
}
