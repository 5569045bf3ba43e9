package pdf

import (
	"strings"
)

// latinReplacer maps symbols the core fonts cannot print to close equivalents
var latinReplacer = strings.NewReplacer(
	"σ", "sigma",
	"μ", "µ",
	"α", "alfa",
	"Δ", "Delta",
	"χ", "chi",
	"→", "->",
	"≥", ">=",
	"≤", "<=",
	"−", "-",
)

// ToLatin replaces characters outside cp1252 that appear in audit narratives
func ToLatin(text string) string {
	return latinReplacer.Replace(text)
}

// TruncateText truncates text to a number of characters
func TruncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// SanitizeFileName removes invalid characters from filename
func SanitizeFileName(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}
	return result
}

// CalculateColumnWidths spreads the total width evenly over the columns
func CalculateColumnWidths(headers []string, totalWidth float64) []float64 {
	numCols := len(headers)
	if numCols == 0 {
		return []float64{}
	}

	baseWidth := totalWidth / float64(numCols)
	widths := make([]float64, numCols)
	for i := range widths {
		widths[i] = baseWidth
	}
	return widths
}
