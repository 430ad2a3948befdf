// Package examcode parses and composes the compact exam product codes
// ("<Level>_<LocationCode>_<Module>", e.g. "A1_CD_Full") shared between the
// registration intake path and the workflow processor. Both sides must derive
// identical display and pricing fields from a raw code, so this is the only
// place the format is interpreted.
package examcode

import (
	"errors"
	"fmt"
	"strings"
)

// Separator joins the level, location, and module segments of a code.
const Separator = "_"

// ErrMalformedCode is returned when a code does not split into exactly three segments.
var ErrMalformedCode = errors.New("examcode: code must have level, location, and module segments")

// ModuleType identifies the assessed unit an exam product covers.
type ModuleType string

// Known module types. Codes may carry other segments (e.g. special VIP
// sittings); those pass through undecoded.
const (
	ModuleFull      ModuleType = "Full"
	ModuleWritten   ModuleType = "Written"
	ModuleOral      ModuleType = "Oral"
	ModuleListening ModuleType = "Listening"
	ModuleReading   ModuleType = "Reading"
)

// locationNames maps location codes to their display names. Unknown codes are
// not an error: they pass through raw so new cities can be rolled out in the
// catalog before this table catches up.
var locationNames = map[string]string{
	"BJ": "北京",
	"CD": "成都",
	"GZ": "广州",
	"HZ": "杭州",
	"NJ": "南京",
	"QD": "青岛",
	"SH": "上海",
	"SZ": "深圳",
	"WX": "无锡",
	"XA": "西安",
	"ZZ": "郑州",
}

var moduleNames = map[ModuleType]string{
	ModuleFull:      "全科",
	ModuleWritten:   "笔试",
	ModuleOral:      "口试",
	ModuleListening: "听力",
	ModuleReading:   "阅读",
	"VIP":           "VIP专场",
}

// Code is the decoded form of an exam product code.
type Code struct {
	Level        string
	LocationCode string
	LocationName string
	Module       ModuleType
	ModuleName   string
	DisplayName  string
}

// Decode splits a raw code into its level, location, and module parts and
// resolves the display fields. The location name falls back to the raw
// location code when the location is not in the fixed table.
func Decode(raw string) (Code, error) {
	parts := strings.Split(strings.TrimSpace(raw), Separator)
	if len(parts) != 3 {
		return Code{}, fmt.Errorf("%w: %q", ErrMalformedCode, raw)
	}
	module := ModuleType(parts[2])
	c := Code{
		Level:        parts[0],
		LocationCode: parts[1],
		LocationName: LocationName(parts[1]),
		Module:       module,
		ModuleName:   ModuleName(module),
	}
	c.DisplayName = c.Level + c.ModuleName
	return c, nil
}

// Encode is the inverse of Decode for the structural triple.
func Encode(level, locationCode string, module ModuleType) string {
	return level + Separator + locationCode + Separator + string(module)
}

// LocationName resolves a location code to its display name. The lookup is
// case-insensitive, and a value that already is a display name is returned
// unchanged.
func LocationName(code string) string {
	if code == "" {
		return code
	}
	for _, name := range locationNames {
		if name == code {
			return code
		}
	}
	if name, ok := locationNames[strings.ToUpper(code)]; ok {
		return name
	}
	return code
}

// LocationCode resolves a display name back to its location code. Name
// matching is exact; a value that already is a known code is normalised to
// upper case and returned.
func LocationCode(name string) string {
	if name == "" {
		return name
	}
	upper := strings.ToUpper(name)
	if _, ok := locationNames[upper]; ok {
		return upper
	}
	for code, display := range locationNames {
		if display == name {
			return code
		}
	}
	return name
}

// KnownLocation reports whether the location code is in the fixed table.
// Callers use it to log a diagnostic for forward-compatible codes.
func KnownLocation(code string) bool {
	_, ok := locationNames[strings.ToUpper(code)]
	return ok
}

// ModuleName returns the display name for a module type, falling back to the
// raw value for unrecognised modules.
func ModuleName(m ModuleType) string {
	if name, ok := moduleNames[m]; ok {
		return name
	}
	return string(m)
}

// LevelDisplay formats a level tag for display, e.g. "A1等级考试".
func LevelDisplay(level string) string {
	return level + "等级考试"
}

// RequiredModules lists the single-module types that together cover a level.
// Selecting all of them is equivalent to the level's Full product. Levels
// without a defined set return nil and are never auto-promoted.
func RequiredModules(level string) []ModuleType {
	switch level {
	case "A1", "A2":
		return []ModuleType{ModuleWritten, ModuleOral}
	case "B1":
		return []ModuleType{ModuleListening, ModuleReading, ModuleOral, ModuleWritten}
	default:
		return nil
	}
}
