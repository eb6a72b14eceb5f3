package settings

import "sort"

// Language is one selectable OCR language.
type Language struct {
	Code     string
	Name     string
	Subtitle string
}

// DefaultLanguage is the code used when nothing valid is stored.
const DefaultLanguage = "eng"

var catalog = map[string]Language{
	"eng":     {Code: "eng", Name: "English", Subtitle: "Latin script, widely supported"},
	"tam":     {Code: "tam", Name: "Tamil", Subtitle: "Tamil script, requires language pack"},
	"sin":     {Code: "sin", Name: "Sinhala", Subtitle: "Sinhala script, requires language pack"},
	"hin":     {Code: "hin", Name: "Hindi", Subtitle: "Devanagari script, requires language pack"},
	"fra":     {Code: "fra", Name: "French", Subtitle: "Language code: fra"},
	"deu":     {Code: "deu", Name: "German", Subtitle: "Language code: deu"},
	"spa":     {Code: "spa", Name: "Spanish", Subtitle: "Language code: spa"},
	"rus":     {Code: "rus", Name: "Russian", Subtitle: "Cyrillic script, requires language pack"},
	"ara":     {Code: "ara", Name: "Arabic", Subtitle: "Arabic script, requires language pack"},
	"jpn":     {Code: "jpn", Name: "Japanese", Subtitle: "Japanese script, requires language pack"},
	"chi_sim": {Code: "chi_sim", Name: "Chinese (Simplified)", Subtitle: "Han script, requires language pack"},
}

// Languages returns the catalog with the default language first, then by name.
func Languages() []Language {
	out := make([]Language, 0, len(catalog))
	for _, l := range catalog {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code == DefaultLanguage || out[j].Code == DefaultLanguage {
			return out[i].Code == DefaultLanguage
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// LookupLanguage finds a catalog entry by code.
func LookupLanguage(code string) (Language, bool) {
	l, ok := catalog[code]
	return l, ok
}

// LanguageName returns the display name for code, or the code itself.
func LanguageName(code string) string {
	if l, ok := catalog[code]; ok {
		return l.Name
	}
	return code
}
