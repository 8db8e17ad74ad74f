package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
)

// envVarPattern matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([-?])([^}]*))?\}`)

// ErrRequiredEnv is returned when a ${VAR:?message} variable is unset or empty.
var ErrRequiredEnv = errors.New("required environment variable not set")

// ExpandEnv replaces environment references in input:
//
//	${VAR}            value of VAR, or empty if unset
//	${VAR:-default}   value of VAR, or default if unset or empty
//	${VAR:?message}   value of VAR, or an error naming VAR and message
//
// All required variables are checked; the error lists every missing one.
func ExpandEnv(input string) (string, error) {
	var errs []error
	out := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, op, arg := groups[1], groups[2], groups[3]

		if value, ok := os.LookupEnv(name); ok && value != "" {
			return value
		}
		switch op {
		case "-":
			return arg
		case "?":
			if arg == "" {
				errs = append(errs, fmt.Errorf("%w: %s", ErrRequiredEnv, name))
			} else {
				errs = append(errs, fmt.Errorf("%w: %s: %s", ErrRequiredEnv, name, arg))
			}
		}
		return ""
	})
	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return out, nil
}
