package report

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	costsSheet = "Utility costs"
	flagsSheet = "Flags"

	// numFmtAmount is excelize's built-in "#,##0.00".
	numFmtAmount = 4
)

// WriteXLSX renders the report for rng as a workbook with a cost grid and a
// list of every flagged cell.
func (u *UtilityCosts) WriteXLSX(ctx context.Context, w io.Writer, rng Range) error {
	rows, err := u.Rows(ctx, rng)
	if err != nil {
		return err
	}
	f, err := Workbook(rows, rng)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Workbook lays rows out in a new workbook. The caller closes it.
func Workbook(rows []Row, rng Range) (*excelize.File, error) {
	f := excelize.NewFile()
	b := &builder{f: f, styles: make(map[[2]string]int)}
	if err := b.build(rows, rng); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

type builder struct {
	f           *excelize.File
	headerStyle int
	amountStyle int
	styles      map[[2]string]int // {color, background} → style id
}

func (b *builder) build(rows []Row, rng Range) error {
	if err := b.f.SetSheetName("Sheet1", costsSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := b.f.NewSheet(flagsSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	var err error
	b.headerStyle, err = b.f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	b.amountStyle, err = b.f.NewStyle(&excelize.Style{NumFmt: numFmtAmount})
	if err != nil {
		return fmt.Errorf("failed to create amount style: %w", err)
	}

	if err := b.costs(rows, rng); err != nil {
		return err
	}
	return b.flags(rows)
}

func (b *builder) costs(rows []Row, rng Range) error {
	months := rng.Months()
	headers := []any{"Property", "Utility"}
	for _, m := range months {
		headers = append(headers, m.String())
	}
	headers = append(headers, "Total")
	if err := b.header(costsSheet, headers); err != nil {
		return err
	}

	for i, row := range rows {
		r := i + 2
		if err := b.set(costsSheet, 1, r, row.PropertyID, 0); err != nil {
			return err
		}
		if err := b.set(costsSheet, 2, r, row.TypeLabel, 0); err != nil {
			return err
		}
		for j, cell := range row.Cells {
			if !cell.HasData {
				continue
			}
			style := b.amountStyle
			if cell.Annotation != nil {
				var err error
				if style, err = b.annotationStyle(cell.Annotation.Color, cell.Annotation.BackgroundColor); err != nil {
					return err
				}
			}
			if err := b.set(costsSheet, j+3, r, cell.Amount.InexactFloat64(), style); err != nil {
				return err
			}
		}
		if err := b.set(costsSheet, len(months)+3, r, row.Total.InexactFloat64(), b.amountStyle); err != nil {
			return err
		}
	}

	if err := b.f.SetColWidth(costsSheet, "A", "B", 20); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	return b.freeze(costsSheet, "C2", 2)
}

func (b *builder) flags(rows []Row) error {
	if err := b.header(flagsSheet, []any{"Property", "Utility", "Month", "Amount", "Trailing average", "Change %", "Rule"}); err != nil {
		return err
	}
	r := 2
	for _, row := range rows {
		for _, cell := range row.Cells {
			a := cell.Annotation
			if a == nil {
				continue
			}
			style, err := b.annotationStyle(a.Color, a.BackgroundColor)
			if err != nil {
				return err
			}
			values := []struct {
				v     any
				style int
			}{
				{row.PropertyID, 0},
				{row.TypeLabel, 0},
				{cell.Month.String(), 0},
				{cell.Amount.InexactFloat64(), style},
				{cell.Average.Round(2).InexactFloat64(), b.amountStyle},
				{a.DeltaPercent.InexactFloat64(), 0},
				{a.RuleName, 0},
			}
			for c, v := range values {
				if err := b.set(flagsSheet, c+1, r, v.v, v.style); err != nil {
					return err
				}
			}
			r++
		}
	}
	if err := b.f.SetColWidth(flagsSheet, "A", "G", 18); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	return b.freeze(flagsSheet, "A2", 0)
}

func (b *builder) header(sheet string, headers []any) error {
	for col, h := range headers {
		if err := b.set(sheet, col+1, 1, h, b.headerStyle); err != nil {
			return err
		}
	}
	return nil
}

// set writes value at (col, row) and applies style when it is non-zero.
func (b *builder) set(sheet string, col, row int, value any, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := b.f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
	if style != 0 {
		if err := b.f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to style cell %s: %w", cell, err)
		}
	}
	return nil
}

// annotationStyle returns an amount style in the rule's colors, creating it
// on first use.
func (b *builder) annotationStyle(color, background string) (int, error) {
	key := [2]string{color, background}
	if id, ok := b.styles[key]; ok {
		return id, nil
	}
	style := &excelize.Style{NumFmt: numFmtAmount}
	if color != "" {
		style.Font = &excelize.Font{Color: expandHex(color), Bold: true}
	}
	if background != "" {
		style.Fill = excelize.Fill{Type: "pattern", Color: []string{expandHex(background)}, Pattern: 1}
	}
	id, err := b.f.NewStyle(style)
	if err != nil {
		return 0, fmt.Errorf("failed to create style for %s/%s: %w", color, background, err)
	}
	b.styles[key] = id
	return id, nil
}

func (b *builder) freeze(sheet, topLeft string, xSplit int) error {
	pane := "bottomLeft"
	if xSplit > 0 {
		pane = "bottomRight"
	}
	if err := b.f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      xSplit,
		YSplit:      1,
		TopLeftCell: topLeft,
		ActivePane:  pane,
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}
	return nil
}

// expandHex turns "#abc" into "#AABBCC"; six-digit colors pass through.
func expandHex(c string) string {
	if len(c) == 4 && c[0] == '#' {
		return "#" + string([]byte{c[1], c[1], c[2], c[2], c[3], c[3]})
	}
	return c
}
