package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	DocURL   string
}

// Registered error codes.
const (
	CodeConfigMissing = "E100"
	CodeConfigInvalid = "E101"
	CodeConfigSchema  = "E102"

	CodeOwnerUnresolved = "E200"
	CodeOwnershipParse  = "E201"
	CodeUnknownStrategy = "E202"
	CodeAncestorCorrupt = "E203"

	CodeUnresolvedPath = "E210"
	CodeInvalidGlob    = "E211"

	CodeStoreUnavailable = "E220"
	CodeStoreDriver      = "E221"

	CodeTemplateNotFound = "E230"
	CodeTemplateRender   = "E231"

	CodeInvalidPath       = "E240"
	CodeInvalidRepository = "E241"
	CodeSynthesisStep     = "E242"
)

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E100-E199)
	// ============================================

	CodeConfigMissing: {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		DocURL:   "https://vango.dev/docs/blueprint/errors/E100",
	},
	CodeConfigInvalid: {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		DocURL:   "https://vango.dev/docs/blueprint/errors/E101",
	},
	CodeConfigSchema: {
		Category: CategoryConfig,
		Message:  "Configuration value out of range",
		DocURL:   "https://vango.dev/docs/blueprint/errors/E102",
	},

	// ============================================
	// Ownership Errors (E200-E209)
	// ============================================

	CodeOwnerUnresolved: {
		Category: CategoryOwnership,
		Message:  "Ownership strategy has no resolvable owner",
		DocURL:   "https://vango.dev/docs/blueprint/errors/E200",
	},
	CodeOwnershipParse: {
		Category: CategoryOwnership,
		Message:  "Malformed ownership file",
		DocURL:   "https://vango.dev/docs/blueprint/errors/E201",
	},
	CodeUnknownStrategy: {
		Category: CategoryMerge,
		Message:  "Unknown merge strategy",
		DocURL:   "https://vango.dev/docs/blueprint/errors/E202",
	},
	CodeAncestorCorrupt: {
		Category: CategoryStorage,
		Message:  "Ancestor snapshot is corrupted",
		DocURL:   "https://vango.dev/docs/blueprint/errors/E203",
	},

	// ============================================
	// Resolution Errors (E210-E219)
	// ============================================

	CodeUnresolvedPath: {
		Category: CategoryResolution,
		Message:  "Path is not covered by any merge strategy",
		DocURL:   "https://vango.dev/docs/blueprint/errors/E210",
	},
	CodeInvalidGlob: {
		Category: CategoryResolution,
		Message:  "Invalid glob pattern",
		DocURL:   "https://vango.dev/docs/blueprint/errors/E211",
	},

	// ============================================
	// Storage Errors (E220-E229)
	// ============================================

	CodeStoreUnavailable: {
		Category: CategoryStorage,
		Message:  "Ancestor store unavailable",
		DocURL:   "https://vango.dev/docs/blueprint/errors/E220",
	},
	CodeStoreDriver: {
		Category: CategoryStorage,
		Message:  "Unknown ancestor store driver",
		DocURL:   "https://vango.dev/docs/blueprint/errors/E221",
	},

	// ============================================
	// Template Errors (E230-E239)
	// ============================================

	CodeTemplateNotFound: {
		Category: CategoryTemplate,
		Message:  "Template not found",
		DocURL:   "https://vango.dev/docs/blueprint/errors/E230",
	},
	CodeTemplateRender: {
		Category: CategoryTemplate,
		Message:  "Template render failed",
		DocURL:   "https://vango.dev/docs/blueprint/errors/E231",
	},

	// ============================================
	// Repository Errors (E240-E249)
	// ============================================

	CodeInvalidPath: {
		Category: CategoryCLI,
		Message:  "Invalid repository path",
		DocURL:   "https://vango.dev/docs/blueprint/errors/E240",
	},
	CodeInvalidRepository: {
		Category: CategoryCLI,
		Message:  "Invalid repository",
		DocURL:   "https://vango.dev/docs/blueprint/errors/E241",
	},
	CodeSynthesisStep: {
		Category: CategoryCLI,
		Message:  "Synthesis step failed",
		DocURL:   "https://vango.dev/docs/blueprint/errors/E242",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
