package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// StructuralParse indicates an unterminated or unbalanced block in a file
	StructuralParse ErrorCode = "STRUCTURAL_PARSE"
	// ModuleCycle indicates a module call that leads back into its own ancestry
	ModuleCycle ErrorCode = "MODULE_CYCLE"
	// DuplicateModule indicates two modules sharing one fullname
	DuplicateModule ErrorCode = "DUPLICATE_MODULE"
	// DuplicateDefinition indicates two definitions sharing one identity key
	DuplicateDefinition ErrorCode = "DUPLICATE_DEFINITION"
	// UnknownMarkupLanguage indicates no markup level produced a language
	UnknownMarkupLanguage ErrorCode = "UNKNOWN_MARKUP_LANGUAGE"
	// UnresolvedReference indicates a signature matched nothing at any level
	UnresolvedReference ErrorCode = "UNRESOLVED_REFERENCE"
	// AmbiguousReference indicates a signature matched several definitions
	AmbiguousReference ErrorCode = "AMBIGUOUS_REFERENCE"
	// InvalidSignature indicates a signature that does not follow the grammar
	InvalidSignature ErrorCode = "INVALID_SIGNATURE"
	// CommentIndentation indicates a comment line indented less than its run
	CommentIndentation ErrorCode = "COMMENT_INDENTATION"
	// RegistryFrozen indicates a write against a frozen registry
	RegistryFrozen ErrorCode = "REGISTRY_FROZEN"
	// RegistryOpen indicates a read that requires a frozen registry
	RegistryOpen ErrorCode = "REGISTRY_OPEN"
	// ConfigInvalid indicates unusable configuration
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// SourceNotFound indicates a module directory that does not exist
	SourceNotFound ErrorCode = "SOURCE_NOT_FOUND"
	// UnknownRootModule indicates a root module name missing from configuration
	UnknownRootModule ErrorCode = "UNKNOWN_ROOT_MODULE"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditSource suggests changing a Terraform source file
	EditSource FixActionType = "edit-source"
	// EditConfig suggests changing the tfdoc configuration
	EditConfig FixActionType = "edit-config"
	// RewriteReference suggests writing a more specific signature
	RewriteReference FixActionType = "rewrite-reference"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
}

// TfdocError represents a tfdoc error with code, message, and suggestions
type TfdocError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a new TfdocError with the default fixes for its code.
func New(code ErrorCode, message string, cause error) *TfdocError {
	return &TfdocError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Newf creates a new TfdocError with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...interface{}) *TfdocError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *TfdocError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *TfdocError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *TfdocError) WithDetails(details interface{}) *TfdocError {
	e.Details = details
	return e
}

// WithFixes replaces the suggested fixes
func (e *TfdocError) WithFixes(fixes ...FixAction) *TfdocError {
	e.SuggestedFixes = fixes
	return e
}

// CodeOf returns the code of the first TfdocError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var te *TfdocError
	if stderrors.As(err, &te) {
		return te.Code
	}
	return ""
}

// HasCode reports whether err's chain holds a TfdocError with the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsFatal reports whether an error of this code must abort the whole build.
func IsFatal(code ErrorCode) bool {
	switch code {
	case DuplicateModule, DuplicateDefinition, ConfigInvalid, InternalError:
		return true
	default:
		return false
	}
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	StructuralParse: {
		{
			Type:        EditSource,
			Description: "Close every block opened with '{' before the end of the file",
		},
		{
			Type:        RunCommand,
			Command:     "terraform fmt -check",
			Safe:        true,
			Description: "Let terraform report the syntax problem",
		},
	},
	DuplicateDefinition: {
		{
			Type:        EditSource,
			Description: "Rename one of the blocks; block signatures are unique within a module",
		},
	},
	DuplicateModule: {
		{
			Type:        EditSource,
			Description: "Rename the module call or the directory so module fullnames stay unique",
		},
	},
	UnknownMarkupLanguage: {
		{
			Type:        EditConfig,
			Description: "Set 'terraformCommentMarkup' or pass a markup option at the inclusion point",
		},
	},
	AmbiguousReference: {
		{
			Type:        RewriteReference,
			Description: "Prefix the signature with a module path or a kind (e.g. 'mod/resource:type.name')",
		},
	},
	UnresolvedReference: {
		{
			Type:        RunCommand,
			Command:     "tfdoc list",
			Safe:        true,
			Description: "List the registered definitions",
		},
	},
	ConfigInvalid: {
		{
			Type:        EditConfig,
			Description: "Review 'terraformSources' in .tfdoc/config.json or tfdoc.toml",
		},
	},
	UnknownRootModule: {
		{
			Type:        EditConfig,
			Description: "Use one of the root module names from 'terraformSources'",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
