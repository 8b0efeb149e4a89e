package i18n

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestNegotiate(t *testing.T) {
	testCases := []struct {
		name   string
		target string
		accept string
		want   language.Tag
	}{
		{"Default", "/", "", language.English},
		{"Query parameter", "/?lang=ar", "", language.Arabic},
		{"Query wins over header", "/?lang=en", "ar-SA,ar;q=0.9", language.English},
		{"Regional header", "/", "ar-EG,en;q=0.5", language.Arabic},
		{"Unsupported header", "/", "fr-FR", language.English},
		{"Garbage query falls through", "/?lang=not_a_tag!", "ar", language.Arabic},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.target, nil)
			if tc.accept != "" {
				req.Header.Set("Accept-Language", tc.accept)
			}
			assert.Equal(t, tc.want, Negotiate(req))
		})
	}
}

func TestMessage(t *testing.T) {
	en := httptest.NewRequest("GET", "/", nil)
	assert.Equal(t, "Invalid email or password", Message(en, InvalidCredentials))

	ar := httptest.NewRequest("GET", "/?lang=ar", nil)
	assert.Equal(t, "البريد الإلكتروني أو كلمة المرور غير صحيحة", Message(ar, InvalidCredentials))
}

func TestEveryKeyHasArabic(t *testing.T) {
	for key, text := range arabic {
		assert.NotEmpty(t, text, "missing Arabic text for %q", key)
		assert.Equal(t, text, Translate(language.Arabic, key))
	}
}
