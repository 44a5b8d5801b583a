package sim

import (
	"fmt"
	"strings"
	"unicode"
)

// BuildName builds a hierarchical name from a parent name and an element
// name, separated by a dot.
func BuildName(parentName, elementName string) string {
	if parentName == "" {
		return elementName
	}

	return parentName + "." + elementName
}

// ValidateElementName checks that a name can be one element of a
// hierarchical name. It must start with a letter and may contain letters,
// digits, dashes and underscores.
func ValidateElementName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}

	if !unicode.IsLetter(rune(name[0])) {
		return fmt.Errorf("name %q must start with a letter", name)
	}

	i := strings.IndexFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_'
	})
	if i >= 0 {
		return fmt.Errorf("name %q must not contain %q", name, name[i])
	}

	return nil
}
