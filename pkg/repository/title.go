package repository

import "strings"

// SourceRoot is the directory, relative to the output root, that holds every
// generated repository.
const SourceRoot = "src"

const maxTitleLength = 100

// badTitleCharacters cannot appear in a repository folder name.
const badTitleCharacters = `!?*%#@&$^~'"<>:|\/` + "`"

// ValidFolder strips characters that are not allowed in a repository folder
// name and truncates the result to 100 characters.
func ValidFolder(name string) string {
	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(badTitleCharacters, r) || r < 0x20 {
			continue
		}
		b.WriteRune(r)
	}
	out := []rune(b.String())
	if len(out) > maxTitleLength {
		out = out[:maxTitleLength]
	}
	return string(out)
}
