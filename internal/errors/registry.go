package errors

// Template defines a registered error type.
type Template struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// ============================================
	// Config Errors (T100-T109)
	// ============================================

	"T100": {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Detail:     "No teddy.json, teddy.yaml or teddy.yml was found.",
		Suggestion: "Create teddy.json or pass --config",
	},
	"T101": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "The configuration file could not be parsed.",
	},
	"T102": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
	},

	// ============================================
	// Input Errors (T110-T119)
	// ============================================

	"T110": {
		Category: CategoryInput,
		Message:  "Cannot read state file",
	},
	"T111": {
		Category:   CategoryInput,
		Message:    "Invalid state file",
		Detail:     "The state file is not valid JSON or YAML.",
		Suggestion: "State files must contain a single JSON or YAML document",
	},
	"T112": {
		Category:   CategoryInput,
		Message:    "Unsupported state file type",
		Suggestion: "Use a .json, .yaml or .yml file",
	},
	"T113": {
		Category:   CategoryInput,
		Message:    "Invalid JSON argument",
		Suggestion: `Quote strings as JSON, e.g. '"honey"'`,
	},
	"T114": {
		Category: CategoryInput,
		Message:  "Cannot write state file",
	},

	// ============================================
	// Path Errors (T120-T129)
	// ============================================

	"T120": {
		Category:   CategoryPath,
		Message:    "Invalid path",
		Suggestion: `Close every "[" with "]" and every "{" with "}"`,
	},
	"T121": {
		Category:   CategoryPath,
		Message:    "Invalid variable",
		Suggestion: `Pass placeholder values with --vars '{"name": "value"}'`,
	},
	"T122": {
		Category: CategoryPath,
		Message:  "Cannot write through a scalar",
		Detail:   "A step of the path goes through a value that is neither an object nor an array.",
	},
	"T123": {
		Category: CategoryPath,
		Message:  "Not an array",
		Detail:   "push, unshift and insert need the path to point at an array.",
	},
	"T124": {
		Category: CategoryPath,
		Message:  "Filter matched nothing",
		Detail:   "A write went through a filter step that matched no element.",
	},

	// ============================================
	// State Errors (T130-T139)
	// ============================================

	"T130": {
		Category:   CategoryState,
		Message:    "Expression failed",
		Suggestion: "Top-level state keys, state, args and get(path) are available",
	},
	"T131": {
		Category: CategoryState,
		Message:  "Operation failed",
	},

	// ============================================
	// Storage Errors (T140-T149)
	// ============================================

	"T140": {
		Category: CategoryStorage,
		Message:  "Cannot open storage",
	},

	// ============================================
	// CLI Errors (T150-T159)
	// ============================================

	"T150": {
		Category: CategoryCLI,
		Message:  "Server failed",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
