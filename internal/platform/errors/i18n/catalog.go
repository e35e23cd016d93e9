// Package i18n holds the localized user-facing messages for public error codes.
package i18n

import (
	"golang.org/x/text/language"
)

// BaseLocale is the locale every lookup falls back to.
const BaseLocale = "en-US"

// Code is a public error code. Codes are plain strings here so this package
// does not import the errors package.
type Code = string

// CodeUnknown is the message used for codes without an entry.
const CodeUnknown Code = "UNKNOWN"

// Catalog maps public codes to messages for one locale.
type Catalog struct {
	locale   string
	messages map[Code]string
	fallback *Catalog
}

// Locale returns the BCP 47 tag of the catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Message returns the message for code, falling back to the base catalog and
// then to the UNKNOWN message.
func (c *Catalog) Message(code Code) string {
	for cat := c; cat != nil; cat = cat.fallback {
		if msg, ok := cat.messages[code]; ok {
			return msg
		}
	}
	return base.messages[CodeUnknown]
}

var (
	base = &Catalog{locale: BaseLocale, messages: enUS}
	es   = &Catalog{locale: "es-ES", messages: esES, fallback: base}

	supported = []*Catalog{base, es}
	matcher   = language.NewMatcher([]language.Tag{
		language.AmericanEnglish,
		language.EuropeanSpanish,
	})
)

// Base returns the base catalog.
func Base() *Catalog {
	return base
}

// Resolve returns the catalog best matching an Accept-Language header value.
// Empty or unparseable values resolve to the base catalog.
func Resolve(acceptLanguage string) *Catalog {
	if acceptLanguage == "" {
		return base
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return base
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return base
	}
	return supported[index]
}
