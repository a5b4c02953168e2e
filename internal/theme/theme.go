// Package theme selects the color scheme for a system type.
package theme

import (
	"image/color"
	"strconv"
	"strings"

	"github.com/hmi-forge/backend/internal/models"
)

// Color roles present in every scheme.
const (
	RoleBackground  = "background"
	RolePrimary     = "primary"
	RoleSecondary   = "secondary"
	RoleAccent      = "accent"
	RoleSuccess     = "success"
	RoleWarning     = "warning"
	RoleDanger      = "danger"
	RoleText        = "text"
	RoleBorder      = "border"
	RoleHeader      = "header"
	RoleFooter      = "footer"
	RoleTableHeader = "table_header"
	RoleTableRow    = "table_row"
	RoleInput       = "input"
)

// Roles lists every color role in a stable order.
var Roles = []string{
	RoleBackground, RolePrimary, RoleSecondary, RoleAccent, RoleSuccess, RoleWarning,
	RoleDanger, RoleText, RoleBorder, RoleHeader, RoleFooter, RoleTableHeader, RoleTableRow, RoleInput,
}

var defaultScheme = models.ColorScheme{
	RoleBackground:  "#F0F2F5",
	RolePrimary:     "#2C3E50",
	RoleSecondary:   "#34495E",
	RoleAccent:      "#3498DB",
	RoleSuccess:     "#27AE60",
	RoleWarning:     "#F39C12",
	RoleDanger:      "#E74C3C",
	RoleText:        "#2C3E50",
	RoleBorder:      "#BDC3C7",
	RoleHeader:      "#2C3E50",
	RoleFooter:      "#34495E",
	RoleTableHeader: "#D5DBDB",
	RoleTableRow:    "#FFFFFF",
	RoleInput:       "#FFFFFF",
}

// catalog is searched in order; the first key contained in the system
// type wins.
var catalog = []struct {
	key    string
	scheme models.ColorScheme
}{
	{"generator", overlay(models.ColorScheme{RolePrimary: "#1B4F72", RoleSecondary: "#21618C", RoleAccent: "#F4D03F", RoleHeader: "#1B4F72", RoleFooter: "#21618C"})},
	{"water", overlay(models.ColorScheme{RolePrimary: "#117A8B", RoleSecondary: "#138D90", RoleAccent: "#5DADE2", RoleBackground: "#EBF5FB", RoleHeader: "#117A8B", RoleFooter: "#138D90"})},
	{"gas", overlay(models.ColorScheme{RolePrimary: "#4A235A", RoleSecondary: "#5B2C6F", RoleAccent: "#F5B041", RoleHeader: "#4A235A", RoleFooter: "#5B2C6F"})},
	{"motor", overlay(models.ColorScheme{RolePrimary: "#283747", RoleSecondary: "#2E4053", RoleAccent: "#E67E22", RoleHeader: "#283747", RoleFooter: "#2E4053"})},
	{"pump", overlay(models.ColorScheme{RolePrimary: "#154360", RoleSecondary: "#1A5276", RoleAccent: "#48C9B0", RoleHeader: "#154360", RoleFooter: "#1A5276"})},
	{"hvac", overlay(models.ColorScheme{RolePrimary: "#0E6655", RoleSecondary: "#117864", RoleAccent: "#85C1E9", RoleBackground: "#F4F6F6", RoleHeader: "#0E6655", RoleFooter: "#117864"})},
	{"power", overlay(models.ColorScheme{RolePrimary: "#7B241C", RoleSecondary: "#922B21", RoleAccent: "#F7DC6F", RoleHeader: "#7B241C", RoleFooter: "#922B21"})},
	{"boiler", overlay(models.ColorScheme{RolePrimary: "#6E2C00", RoleSecondary: "#873600", RoleAccent: "#F5CBA7", RoleHeader: "#6E2C00", RoleFooter: "#873600"})},
}

func overlay(over models.ColorScheme) models.ColorScheme {
	out := Default()
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Default returns a copy of the default scheme.
func Default() models.ColorScheme {
	out := make(models.ColorScheme, len(defaultScheme))
	for k, v := range defaultScheme {
		out[k] = v
	}
	return out
}

// ForSystemType returns a copy of the scheme whose catalog key occurs in
// systemType, or the default scheme.
func ForSystemType(systemType string) models.ColorScheme {
	lower := strings.ToLower(systemType)
	for _, entry := range catalog {
		if strings.Contains(lower, entry.key) {
			out := make(models.ColorScheme, len(entry.scheme))
			for k, v := range entry.scheme {
				out[k] = v
			}
			return out
		}
	}
	return Default()
}

// Complete fills roles missing from s with the default scheme. Invalid
// color strings are replaced as well.
func Complete(s models.ColorScheme) models.ColorScheme {
	out := Default()
	for k, v := range s {
		if _, ok := ParseHex(v); ok {
			out[k] = v
		}
	}
	return out
}

// ParseHex parses #rgb or #rrggbb.
func ParseHex(s string) (color.RGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}, true
}

// Color resolves role in s, falling back to the default scheme.
func Color(s models.ColorScheme, role string) color.RGBA {
	if c, ok := ParseHex(s[role]); ok {
		return c
	}
	c, _ := ParseHex(defaultScheme[role])
	return c
}
