// Package textnorm normaliza texto libre para el matching por keywords.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize pasa a minusculas, convierte '_' y espacios en blanco a un espacio
// y elimina la puntuacion.
func Normalize(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	space := true
	for _, r := range strings.ToLower(text) {
		switch {
		case r == '_' || unicode.IsSpace(r):
			if !space {
				sb.WriteByte(' ')
				space = true
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			space = false
		}
	}
	return strings.TrimRight(sb.String(), " ")
}

// Tokens devuelve los terminos normalizados en orden de aparicion.
func Tokens(text string) []string {
	return strings.Fields(Normalize(text))
}

// TokenSet devuelve el conjunto de terminos normalizados.
func TokenSet(text string) map[string]struct{} {
	tokens := Tokens(text)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// ContainsRun reporta si phrase aparece como secuencia contigua dentro de tokens.
func ContainsRun(tokens, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return false
	}
outer:
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		for j, p := range phrase {
			if tokens[i+j] != p {
				continue outer
			}
		}
		return true
	}
	return false
}

// Truncate corta text a como maximo maxRunes runas.
func Truncate(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes])
}
