package i18n_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/bedrock-provider/internal/i18n"
)

func TestCatalog_Translate(t *testing.T) {
	c, err := i18n.Load()
	require.NoError(t, err)

	tests := []struct {
		name string
		lang string
		key  string
		arg  []string
		want string
	}{
		{name: "english", lang: "en", key: i18n.ErrUserRateLimitReached, want: "User rate limit exceeded"},
		{name: "italian", lang: "it", key: i18n.ErrGlobalRateLimitReached, want: "Limite di velocità globale superato"},
		{name: "region suffix", lang: "it_IT", key: i18n.ErrUnknown, want: "Errore sconosciuto"},
		{name: "placeholder", lang: "en", key: i18n.ErrFailedProcessImage, arg: []string{"bad data"}, want: "Failed to process image: bad data"},
		{name: "italian placeholder", lang: "it", key: i18n.ErrFailedProcessImage, arg: []string{"x"}, want: "Impossibile elaborare l'immagine: x"},
		{name: "falls back to english", lang: "it", key: i18n.InvalidJSON, want: "This is not valid JSON."},
		{name: "unknown language", lang: "fr", key: i18n.ErrNoImageData, want: "No image data found in the response"},
		{name: "empty language", lang: "", key: i18n.ErrNoImageData, want: "No image data found in the response"},
		{name: "unknown key", lang: "en", key: "nope", want: "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.T(tt.lang, tt.key, tt.arg...))
		})
	}
}

func TestCatalog_Languages(t *testing.T) {
	assert.Equal(t, []string{"en", "it"}, i18n.Default().Languages())
	assert.Same(t, i18n.Default(), i18n.Default())
}
