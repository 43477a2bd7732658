package profiles

import (
	"fmt"
	"os"
	"regexp"
)

// envVarPattern matches {{ env_var('NAME') }} and {{ env_var('NAME', 'default') }},
// optionally followed by an as_number/as_text/as_bool/int filter.
var envVarPattern = regexp.MustCompile(
	`\{\{\s*env_var\(\s*['"]([^'"]+)['"]\s*(?:,\s*['"]([^'"]*)['"]\s*)?\)\s*(?:\|\s*(?:as_number|as_text|as_bool|int)\s*)?\}\}`)

// ExpandEnvVars replaces env_var() placeholders in s with values from the
// environment. A variable that is unset and has no default is an error.
func ExpandEnvVars(s string) (string, error) {
	var missing string
	out := envVarPattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := envVarPattern.FindStringSubmatch(m)
		name := sub[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		// The default group only matches when a second argument is present.
		if hasDefault(m) {
			return sub[2]
		}
		if missing == "" {
			missing = name
		}
		return m
	})
	if missing != "" {
		return "", fmt.Errorf("env var required but not provided: '%s'", missing)
	}
	return out, nil
}

var defaultArgPattern = regexp.MustCompile(`env_var\(\s*['"][^'"]+['"]\s*,`)

func hasDefault(m string) bool {
	return defaultArgPattern.MatchString(m)
}
