// Package pdf renders narrative audit documents with gofpdf
package pdf

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf/v2"
)

// Generator is the main PDF generator with common functionality
type Generator struct {
	pdf         *gofpdf.Fpdf
	config      *Config
	tr          func(string) string
	reportTitle string
	footerText  string
	generatedAt time.Time
}

// Config holds PDF configuration
type Config struct {
	Orientation string  // "P" (portrait) or "L" (landscape)
	Unit        string  // "mm", "pt", "in"
	Size        string  // "Letter", "A4", "Legal"
	FontFamily  string  // Default font family
	FontSize    float64 // Default font size
	Margins     Margins
	HeaderStyle HeaderStyle
	FooterStyle FooterStyle
}

// Margins defines page margins
type Margins struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// HeaderStyle defines header appearance
type HeaderStyle struct {
	Height          float64
	ShowDate        bool
	ShowReportTitle bool
	Alignment       string // "L", "C", "R"
	TextColor       RGB
}

// FooterStyle defines footer appearance
type FooterStyle struct {
	Height          float64
	ShowPageNumbers bool
	ShowDate        bool
	Alignment       string // "L", "C", "R"
	TextColor       RGB
}

// RGB represents a color
type RGB struct {
	R, G, B int
}

// Bar colors for chart series, cycled when there are more series
var seriesColors = []RGB{
	{52, 101, 164},
	{237, 125, 49},
	{112, 173, 71},
	{165, 165, 165},
}

// DefaultConfig returns standard PDF configuration
func DefaultConfig() *Config {
	return &Config{
		Orientation: "P",
		Unit:        "mm",
		Size:        "A4",
		FontFamily:  "Arial",
		FontSize:    10,
		Margins: Margins{
			Top:    25.4,  // 1 inch
			Right:  19.05, // 0.75 inch
			Bottom: 20,
			Left:   19.05, // 0.75 inch
		},
		HeaderStyle: HeaderStyle{
			Height:          18,
			ShowDate:        true,
			ShowReportTitle: true,
			Alignment:       "C",
			TextColor:       RGB{0, 0, 0},
		},
		FooterStyle: FooterStyle{
			Height:          12,
			ShowPageNumbers: true,
			ShowDate:        true,
			Alignment:       "C",
			TextColor:       RGB{128, 128, 128},
		},
	}
}

// NewGenerator creates a new PDF generator
func NewGenerator(config *Config) *Generator {
	if config == nil {
		config = DefaultConfig()
	}

	pdf := gofpdf.New(config.Orientation, config.Unit, config.Size, "")
	pdf.SetFont(config.FontFamily, "", config.FontSize)
	pdf.SetMargins(config.Margins.Left, config.Margins.Top, config.Margins.Right)
	pdf.SetAutoPageBreak(true, config.Margins.Bottom)

	// Core fonts are cp1252; translate UTF-8 after replacing what cp1252 lacks
	cp1252 := pdf.UnicodeTranslatorFromDescriptor("")
	gen := &Generator{
		pdf:         pdf,
		config:      config,
		tr:          func(s string) string { return cp1252(ToLatin(s)) },
		generatedAt: time.Now(),
	}

	pdf.SetHeaderFunc(gen.headerCallback)
	pdf.SetFooterFunc(gen.footerCallback)

	return gen
}

// SetReportTitle sets the title that appears in the header
func (g *Generator) SetReportTitle(title string) {
	g.reportTitle = title
	g.pdf.SetTitle(title, true)
}

// SetFooterText sets extra text printed after the page number
func (g *Generator) SetFooterText(text string) {
	g.footerText = text
}

// SetGeneratedAt fixes the timestamp printed in header and footer
func (g *Generator) SetGeneratedAt(t time.Time) {
	g.generatedAt = t
	g.pdf.SetCreationDate(t)
}

// AddPage adds a new page to the PDF
func (g *Generator) AddPage() {
	g.pdf.AddPage()
}

// headerCallback is called automatically for each page
func (g *Generator) headerCallback() {
	if g.config.HeaderStyle.Height == 0 {
		return
	}

	pdf := g.pdf
	style := g.config.HeaderStyle
	x, y := pdf.GetXY()

	pdf.SetTextColor(style.TextColor.R, style.TextColor.G, style.TextColor.B)

	if style.ShowReportTitle && g.reportTitle != "" {
		pdf.SetFont(g.config.FontFamily, "B", 12)
		pdf.SetY(style.Height - 8)
		g.alignText(g.reportTitle, style.Alignment)
	}

	if style.ShowDate {
		pdf.SetFont(g.config.FontFamily, "", 8)
		pdf.SetY(5)
		pdf.SetX(-45)
		pdf.Cell(40, 5, g.generatedAt.Format("2006-01-02 15:04"))
	}

	pdf.SetXY(x, y)
	pdf.SetTextColor(0, 0, 0)
}

// footerCallback is called automatically for each page
func (g *Generator) footerCallback() {
	if g.config.FooterStyle.Height == 0 {
		return
	}

	pdf := g.pdf
	style := g.config.FooterStyle

	pdf.SetY(-style.Height)
	pdf.SetTextColor(style.TextColor.R, style.TextColor.G, style.TextColor.B)
	pdf.SetFont(g.config.FontFamily, "", 8)

	var parts []string
	if style.ShowPageNumbers {
		parts = append(parts, fmt.Sprintf("%d", pdf.PageNo()))
	}
	if style.ShowDate {
		parts = append(parts, g.generatedAt.Format("2006-01-02"))
	}
	if g.footerText != "" {
		parts = append(parts, g.footerText)
	}

	g.alignText(strings.Join(parts, " | "), style.Alignment)
	pdf.SetTextColor(0, 0, 0)
}

// alignText aligns text based on alignment setting
func (g *Generator) alignText(text string, alignment string) {
	pdf := g.pdf
	text = g.tr(text)
	width, _ := pdf.GetPageSize()

	switch alignment {
	case "C":
		pdf.SetX((width - pdf.GetStringWidth(text)) / 2)
	case "R":
		pdf.SetX(width - pdf.GetStringWidth(text) - g.config.Margins.Right)
	default: // "L"
		pdf.SetX(g.config.Margins.Left)
	}

	pdf.Cell(pdf.GetStringWidth(text), 5, text)
}

// contentWidth is the printable width between the margins
func (g *Generator) contentWidth() float64 {
	width, _ := g.pdf.GetPageSize()
	return width - g.config.Margins.Left - g.config.Margins.Right
}

// AddTitle adds a centered title to the document
func (g *Generator) AddTitle(title string, fontSize float64) {
	g.pdf.SetFont(g.config.FontFamily, "B", fontSize)
	g.pdf.MultiCell(0, fontSize*0.5, g.tr(title), "", "C", false)
	g.pdf.Ln(fontSize * 0.3)
	g.pdf.SetFont(g.config.FontFamily, "", g.config.FontSize)
}

// AddSubtitle adds a subtitle to the document
func (g *Generator) AddSubtitle(subtitle string) {
	g.pdf.SetFont(g.config.FontFamily, "", 10)
	g.pdf.MultiCell(0, 6, g.tr(subtitle), "", "L", false)
	g.pdf.Ln(2)
}

// AddSection adds a bold heading followed by bulleted lines
func (g *Generator) AddSection(heading string, bullets []string) {
	pdf := g.pdf
	pdf.SetFont(g.config.FontFamily, "B", 11)
	pdf.MultiCell(0, 7, g.tr(heading), "", "L", false)

	pdf.SetFont(g.config.FontFamily, "", g.config.FontSize)
	indent := 5.0
	for _, line := range bullets {
		pdf.SetX(g.config.Margins.Left + indent)
		pdf.MultiCell(g.contentWidth()-indent, 5, g.tr("• "+line), "", "L", false)
	}
	pdf.Ln(3)
}

// AddTable adds a table to the PDF. Nil widths are spread evenly.
func (g *Generator) AddTable(headers []string, data [][]string, widths []float64) {
	pdf := g.pdf
	if len(headers) == 0 {
		return
	}
	if widths == nil {
		widths = CalculateColumnWidths(headers, g.contentWidth())
	}

	pdf.SetFont(g.config.FontFamily, "B", 9)
	pdf.SetFillColor(240, 240, 240)
	pdf.SetTextColor(0, 0, 0)

	for i, header := range headers {
		pdf.CellFormat(widths[i], 7, g.fit(header, widths[i]), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(g.config.FontFamily, "", 8)
	pdf.SetFillColor(255, 255, 255)

	for _, row := range data {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			alignment := "L"
			if isNumeric(cell) {
				alignment = "R"
			}
			pdf.CellFormat(widths[i], 6, g.fit(cell, widths[i]), "1", 0, alignment, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(3)
}

// fit translates and truncates a cell so it stays inside its column
func (g *Generator) fit(text string, width float64) string {
	text = g.tr(text)
	limit := width - 2
	if g.pdf.GetStringWidth(text) <= limit {
		return text
	}
	for len(text) > 0 && g.pdf.GetStringWidth(text+"...") > limit {
		text = text[:len(text)-1]
	}
	return text + "..."
}

// ChartSeries is one bar series of a grouped bar chart
type ChartSeries struct {
	Name   string
	Values []float64
}

// AddBarChart draws a grouped bar chart with one group per label
func (g *Generator) AddBarChart(title string, labels []string, series []ChartSeries, height float64) {
	pdf := g.pdf
	if len(labels) == 0 || len(series) == 0 {
		return
	}

	maxValue := 0.0
	for _, s := range series {
		for _, v := range s.Values {
			maxValue = math.Max(maxValue, v)
		}
	}
	if maxValue == 0 {
		maxValue = 1
	}

	pdf.SetFont(g.config.FontFamily, "B", 10)
	pdf.MultiCell(0, 6, g.tr(title), "", "C", false)

	_, pageHeight := pdf.GetPageSize()
	if pdf.GetY()+height+20 > pageHeight-g.config.Margins.Bottom {
		pdf.AddPage()
	}

	left := g.config.Margins.Left + 10
	width := g.contentWidth() - 10
	top := pdf.GetY() + 2
	bottom := top + height

	// Axes
	pdf.SetDrawColor(0, 0, 0)
	pdf.Line(left, top, left, bottom)
	pdf.Line(left, bottom, left+width, bottom)

	pdf.SetFont(g.config.FontFamily, "", 7)
	for _, frac := range []float64{0, 0.5, 1} {
		y := bottom - frac*height
		pdf.SetXY(g.config.Margins.Left, y-2)
		pdf.CellFormat(9, 4, fmt.Sprintf("%.2f", frac*maxValue), "", 0, "R", false, 0, "")
	}

	groupWidth := width / float64(len(labels))
	barWidth := groupWidth * 0.8 / float64(len(series))
	for i, label := range labels {
		groupLeft := left + float64(i)*groupWidth + groupWidth*0.1
		for j, s := range series {
			if i >= len(s.Values) {
				continue
			}
			c := seriesColors[j%len(seriesColors)]
			pdf.SetFillColor(c.R, c.G, c.B)
			h := s.Values[i] / maxValue * height
			pdf.Rect(groupLeft+float64(j)*barWidth, bottom-h, barWidth, h, "F")
		}
		pdf.SetXY(left+float64(i)*groupWidth, bottom+1)
		pdf.CellFormat(groupWidth, 4, g.tr(label), "", 0, "C", false, 0, "")
	}

	// Legend
	pdf.SetXY(left, bottom+6)
	for j, s := range series {
		c := seriesColors[j%len(seriesColors)]
		pdf.SetFillColor(c.R, c.G, c.B)
		x, y := pdf.GetXY()
		pdf.Rect(x, y+1, 3, 3, "F")
		pdf.SetX(x + 4)
		name := g.tr(s.Name)
		pdf.Cell(pdf.GetStringWidth(name)+6, 5, name)
	}
	pdf.SetFillColor(255, 255, 255)
	pdf.Ln(10)
}

// AddSeparator adds a horizontal line separator
func (g *Generator) AddSeparator() {
	pdf := g.pdf
	width, _ := pdf.GetPageSize()
	y := pdf.GetY()
	pdf.Line(g.config.Margins.Left, y, width-g.config.Margins.Right, y)
	pdf.Ln(3)
}

// Output generates the PDF and returns it as bytes
func (g *Generator) Output() ([]byte, error) {
	var buf bytes.Buffer
	if err := g.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// isNumeric checks if a string looks like a formatted number
func isNumeric(s string) bool {
	if len(s) == 0 {
		return false
	}
	digits := 0
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' || c == ',' || c == '-' || c == '%' || c == '+':
		default:
			return false
		}
	}
	return digits > 0
}
