package dynamic

// AllowedPackages defines the standard library packages that interpreted
// adapters are permitted to import. Packages not in this list are rejected
// during source validation.
var AllowedPackages = map[string]bool{
	"fmt":             true,
	"strings":         true,
	"strconv":         true,
	"encoding/json":   true,
	"encoding/xml":    true,
	"encoding/base64": true,
	"context":         true,
	"time":            true,
	"math":            true,
	"sort":            true,
	"errors":          true,
	"io":              true,
	"bytes":           true,
	"bufio":           true,
	"unicode":         true,
	"unicode/utf8":    true,
	"regexp":          true,
	"path":            true,
	"net/url":         true,
	"net/http":        true,
	"maps":            true,
	"slices":          true,
	"crypto/sha256":   true,
	"crypto/hmac":     true,
}

// BlockedPackages defines packages that are explicitly forbidden for
// security reasons, regardless of the allow list.
var BlockedPackages = map[string]bool{
	"os":             true,
	"os/exec":        true,
	"syscall":        true,
	"unsafe":         true,
	"plugin":         true,
	"reflect":        true,
	"runtime/debug":  true,
	"net":            true,
	"debug/elf":      true,
	"debug/macho":    true,
	"debug/pe":       true,
	"debug/plan9obj": true,
}

// IsPackageAllowed checks if a given import path is permitted in
// interpreted adapters.
func IsPackageAllowed(pkg string) bool {
	if BlockedPackages[pkg] {
		return false
	}
	return AllowedPackages[pkg]
}
