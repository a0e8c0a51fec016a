package schema

import (
	"regexp"
)

// shapegenDirectiveRegex matches @shapegen(...) at the start of a line. One
// level of nested parentheses is allowed inside the arguments.
var shapegenDirectiveRegex = regexp.MustCompile(`(?m)^@shapegen\s*\(((?:[^()]*|\([^)]*\))*)\)`)

// serviceStartRegex matches service declarations at the start of a line and
// captures the service name.
var serviceStartRegex = regexp.MustCompile(`(?m)^service\s+(\w+)\s*{`)

// metadataType holds the @shapegen directive after preprocessing.
const metadataType = "_Schema"

// servicePrefix marks object types that were service blocks.
const servicePrefix = "Service_"

// PreprocessGraphQL rewrites `@shapegen(...)` and `service` blocks into valid
// GraphQL `type` definitions.
func PreprocessGraphQL(input string) string {
	// The directive needs a field to attach to.
	input = shapegenDirectiveRegex.ReplaceAllStringFunc(input, func(match string) string {
		args := shapegenDirectiveRegex.FindStringSubmatch(match)[1]
		return `type ` + metadataType + ` {
  _: String @shapegen(` + args + `)
}`
	})

	input = serviceStartRegex.ReplaceAllStringFunc(input, func(match string) string {
		serviceName := serviceStartRegex.FindStringSubmatch(match)[1]
		return `type ` + servicePrefix + serviceName + ` {`
	})

	return input
}
