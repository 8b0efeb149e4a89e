// Package i18n localizes the user-facing auth and registration messages.
package i18n

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Key identifies a localized message. Its value is the English text.
type Key string

const (
	Unauthorized        Key = "Authentication required"
	Forbidden           Key = "You do not have permission to access this resource"
	InvalidToken        Key = "Invalid or expired session"
	InvalidCredentials  Key = "Invalid email or password"
	EmailExists         Key = "An account with this email already exists"
	InvalidRegistration Key = "Please provide a valid email, a name and a password of at least 8 characters"
	TooManyRequests     Key = "Too many requests, please try again later"
	OAuthUnavailable    Key = "Google sign-in is not available"
	OAuthFailed         Key = "Google sign-in failed"
	SignedOut           Key = "Signed out"
	SessionUnavailable  Key = "Unable to verify your session, please try again later"
)

var arabic = map[Key]string{
	Unauthorized:        "يجب تسجيل الدخول",
	Forbidden:           "ليس لديك صلاحية للوصول إلى هذا المورد",
	InvalidToken:        "الجلسة غير صالحة أو منتهية",
	InvalidCredentials:  "البريد الإلكتروني أو كلمة المرور غير صحيحة",
	EmailExists:         "يوجد حساب مسجل بهذا البريد الإلكتروني",
	InvalidRegistration: "يرجى إدخال بريد إلكتروني صالح واسم وكلمة مرور لا تقل عن 8 أحرف",
	TooManyRequests:     "طلبات كثيرة جدًا، يرجى المحاولة لاحقًا",
	OAuthUnavailable:    "تسجيل الدخول عبر Google غير متاح",
	OAuthFailed:         "فشل تسجيل الدخول عبر Google",
	SignedOut:           "تم تسجيل الخروج",
	SessionUnavailable:  "تعذر التحقق من الجلسة، يرجى المحاولة لاحقًا",
}

var (
	supported = []language.Tag{language.English, language.Arabic}
	matcher   = language.NewMatcher(supported)
	messages  = newCatalog()
)

func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, text := range arabic {
		_ = b.SetString(language.English, string(key), string(key))
		_ = b.SetString(language.Arabic, string(key), text)
	}
	return b
}

// Negotiate picks the response language from the "lang" query parameter,
// falling back to Accept-Language and then English.
func Negotiate(r *http.Request) language.Tag {
	var candidates []language.Tag
	if lang := strings.TrimSpace(r.URL.Query().Get("lang")); lang != "" {
		if tag, err := language.Parse(lang); err == nil {
			candidates = append(candidates, tag)
		}
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil {
			candidates = append(candidates, tags...)
		}
	}
	if len(candidates) == 0 {
		return language.English
	}
	_, index, confidence := matcher.Match(candidates...)
	if confidence == language.No {
		return language.English
	}
	return supported[index]
}

// Translate returns key rendered in tag.
func Translate(tag language.Tag, key Key) string {
	return message.NewPrinter(tag, message.Catalog(messages)).Sprintf(string(key))
}

// Message renders key in the language negotiated for r.
func Message(r *http.Request, key Key) string {
	return Translate(Negotiate(r), key)
}
