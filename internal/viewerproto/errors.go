package viewerproto

const (
	// Transport validation.
	ErrBadRequest = "E_BAD_REQUEST"

	ErrImportFormat = "E_IMPORT_FORMAT"
	ErrScript       = "E_SCRIPT"
	ErrBusy         = "E_BUSY"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:   {},
	ErrImportFormat: {},
	ErrScript:       {},
	ErrBusy:         {},
	ErrInternal:     {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
