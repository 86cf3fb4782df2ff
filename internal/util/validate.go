package util

import (
	"fmt"
	"regexp"
)

// validNameChars matches only alphanumeric characters and hyphens.
var validNameChars = regexp.MustCompile(`^[a-zA-Z0-9\-]+$`)

// maxContainerName is the hostname label limit the hypervisor enforces.
const maxContainerName = 63

// ValidateContainerName checks that a container name is a valid hostname
// label as required by the hypervisor:
//   - Between 1 and 63 characters
//   - Only alphanumeric characters (a-z, A-Z, 0-9) and hyphens (-)
//   - First character must be a letter
//   - Last character must not be a hyphen
func ValidateContainerName(name string) error {
	if name == "" {
		return fmt.Errorf("container name must not be empty")
	}
	if len(name) > maxContainerName {
		return fmt.Errorf("container name must be at most %d characters, got %d", maxContainerName, len(name))
	}

	if !validNameChars.MatchString(name) {
		return fmt.Errorf("container name %q contains invalid characters (only a-z, A-Z, 0-9 and hyphens are allowed)", name)
	}

	first := name[0]
	if !isLetter(first) {
		return fmt.Errorf("container name must start with a letter, got %q", string(first))
	}

	if name[len(name)-1] == '-' {
		return fmt.Errorf("container name must not end with a hyphen")
	}

	return nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
