package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-catalog-service/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSettings_DefaultsWhenEmpty(t *testing.T) {
	s := newTestStore(t)

	got := s.Settings()

	assert.Equal(t, "/logo.png", got.Logo)
	assert.Equal(t, DefaultWhatsappNumber, got.WhatsappNumber)
	assert.Empty(t, got.WhatsappGroup)
}

func TestSettings_SaveAndReload(t *testing.T) {
	s := newTestStore(t)

	saved := domain.Settings{
		Logo:           "/custom.png",
		WhatsappNumber: "923001234567",
		WhatsappGroup:  "https://chat.whatsapp.com/abc",
	}
	require.NoError(t, s.SaveSettings(saved))

	assert.Equal(t, saved, s.Settings())
}

func TestSettings_EmptyNumberFallsBackToDefault(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveSettings(domain.Settings{Logo: "/custom.png"}))

	got := s.Settings()
	assert.Equal(t, "/custom.png", got.Logo)
	assert.Equal(t, DefaultWhatsappNumber, got.WhatsappNumber, "checkout must never build a link without a number")
}

func TestCategoryButtons_DefaultsCoverReservedTags(t *testing.T) {
	s := newTestStore(t)

	buttons := s.CategoryButtons()

	for _, tag := range domain.ReservedTags {
		assert.Contains(t, buttons, tag)
	}
	assert.Equal(t, "Free", buttons[domain.TagFree].Price)
}

func TestCategoryButtons_SaveAndReload(t *testing.T) {
	s := newTestStore(t)

	custom := map[string]domain.CategoryButton{
		domain.TagPaid: {Text: "Bulk Deals", Price: "Ask", Message: "Bulk pricing please"},
		"Tools":       {Text: "All Tools", Price: "Rs. 999", Message: "Tools bundle"},
	}
	require.NoError(t, s.SaveCategoryButtons(custom))

	assert.Equal(t, custom, s.CategoryButtons())
}

func TestResetDefaults_RestoresBoth(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveSettings(domain.Settings{Logo: "/custom.png", WhatsappNumber: "111"}))
	require.NoError(t, s.SaveCategoryButtons(map[string]domain.CategoryButton{"Tools": {Text: "x"}}))

	require.NoError(t, s.ResetDefaults())

	assert.Equal(t, DefaultSettings(), s.Settings())
	assert.Equal(t, DefaultCategoryButtons(), s.CategoryButtons())
}

func TestResetDefaults_NoopOnEmptyStore(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.ResetDefaults())
	assert.Equal(t, DefaultSettings(), s.Settings())
}
