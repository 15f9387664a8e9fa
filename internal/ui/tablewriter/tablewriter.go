package tablewriter

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Column 表格列定义
type Column struct {
	Name         string // 列名
	SeparateLine bool   // 是否单独一行显示
	RightAlign   bool   // 是否右对齐
	Colorize     func(value string) *color.Color
}

type columnCfg struct {
	rightAlign bool
	colorize   func(value string) *color.Color
}

// ColumnOption 列选项函数类型
type ColumnOption func(*columnCfg)

// RightAlign 返回右对齐选项
func RightAlign() ColumnOption {
	return func(c *columnCfg) {
		c.rightAlign = true
	}
}

// Highlight 根据单元格内容选择颜色，返回 nil 表示不着色
func Highlight(pick func(value string) *color.Color) ColumnOption {
	return func(c *columnCfg) {
		c.colorize = pick
	}
}

// TableWriter 表格写入器
type TableWriter struct {
	cols []Column
	rows []map[string]string
}

// Col 创建普通列
func Col(name string, opts ...ColumnOption) Column {
	cfg := &columnCfg{}
	for _, o := range opts {
		o(cfg)
	}
	return Column{
		Name:       name,
		RightAlign: cfg.rightAlign,
		Colorize:   cfg.colorize,
	}
}

// NewLineCol 创建单独行列
func NewLineCol(name string) Column {
	return Column{
		Name:         name,
		SeparateLine: true,
	}
}

// New 创建新的表格写入器
func New(cols ...Column) *TableWriter {
	return &TableWriter{
		cols: cols,
	}
}

// Write 写入一行数据，nil 值输出为空
func (w *TableWriter) Write(r map[string]interface{}) {
	row := make(map[string]string, len(r))
	for k, v := range r {
		if v == nil {
			continue
		}
		row[k] = fmt.Sprint(v)
	}
	w.rows = append(w.rows, row)
}

// Flush 输出表格
// 列宽按可见字符计算，着色后仍然对齐
func (w *TableWriter) Flush(out io.Writer) error {
	var cols []Column
	for _, col := range w.cols {
		if !col.SeparateLine {
			cols = append(cols, col)
		}
	}

	widths := make([]int, len(cols))
	for i, col := range cols {
		widths[i] = visibleLen(col.Name)
		for _, row := range w.rows {
			if l := visibleLen(row[col.Name]); l > widths[i] {
				widths[i] = l
			}
		}
	}

	if len(cols) > 0 {
		header := make([]string, len(cols))
		for i, col := range cols {
			header[i] = pad(col.Name, widths[i], col.RightAlign)
		}
		if _, err := fmt.Fprintln(out, strings.TrimRight(strings.Join(header, "  "), " ")); err != nil {
			return err
		}
	}

	for _, row := range w.rows {
		if len(cols) > 0 {
			fields := make([]string, len(cols))
			for i, col := range cols {
				val := row[col.Name]
				if col.Colorize != nil && val != "" {
					if c := col.Colorize(val); c != nil {
						val = c.Sprint(val)
					}
				}
				fields[i] = pad(val, widths[i], col.RightAlign)
			}
			if _, err := fmt.Fprintln(out, strings.TrimRight(strings.Join(fields, "  "), " ")); err != nil {
				return err
			}
		}

		for _, col := range w.cols {
			if !col.SeparateLine {
				continue
			}
			if val := row[col.Name]; val != "" {
				if _, err := fmt.Fprintf(out, "  %s: %s\n", col.Name, val); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

var ansi = regexp.MustCompile("\x1b\\[[0-9;]*m")

func visibleLen(s string) int {
	return utf8.RuneCountInString(ansi.ReplaceAllString(s, ""))
}

func pad(s string, width int, right bool) string {
	gap := width - visibleLen(s)
	if gap <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}
