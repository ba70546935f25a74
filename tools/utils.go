package tools

import (
	"encoding/json"
	"path/filepath"
	"strings"
)

func FmtJSONString(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "marshal data fail"
	}
	return string(data)
}

// LevelFromFileName extracts the LOD level from a tile file name: the digits
// right after the "_L" marker, up to the next "_" or the first non-digit.
// Returns -1 when the marker or digits are absent.
func LevelFromFileName(name string) int {
	stem := filepath.Base(name)
	p0 := strings.Index(stem, "_L")
	if p0 < 0 {
		return -1
	}
	digits := stem[p0+2:]
	end := 0
	for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
		end++
	}
	if end == 0 {
		return -1
	}
	level := 0
	for _, c := range digits[:end] {
		level = level*10 + int(c-'0')
	}
	return level
}
