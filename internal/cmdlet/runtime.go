// Package cmdlet implements commands that bind parameters, ask for
// confirmation, call remote services and write results.
package cmdlet

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Runtime receives results of command execution.
type Runtime interface {
	// WriteObject writes command result.
	WriteObject(value any) error
	// WriteWarning writes warning for user.
	WriteWarning(message string)
}

type OutputFormat string

const (
	JSONOutput  OutputFormat = "json"
	TableOutput OutputFormat = "table"
)

// ParseOutputFormat parses output format ignoring case.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch format := OutputFormat(strings.ToLower(s)); format {
	case JSONOutput, TableOutput:
		return format, nil
	default:
		return "", fmt.Errorf(
			"invalid output format %q (expected %q or %q)", s, JSONOutput, TableOutput,
		)
	}
}

var warningColor = color.New(color.FgYellow)

// ConsoleRuntime writes objects to Output and warnings to Errors.
type ConsoleRuntime struct {
	Output io.Writer
	Errors io.Writer
	Format OutputFormat
}

func NewConsoleRuntime(output, errors io.Writer, format OutputFormat) *ConsoleRuntime {
	return &ConsoleRuntime{Output: output, Errors: errors, Format: format}
}

func (r *ConsoleRuntime) WriteObject(value any) error {
	if r.Format == TableOutput {
		if header, rows, ok := tableRows(value); ok {
			return r.writeTable(header, rows)
		}
		if s, ok := scalarCell(reflect.ValueOf(value)); ok {
			_, err := fmt.Fprintln(r.Output, s)
			return err
		}
	}
	encoder := json.NewEncoder(r.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func (r *ConsoleRuntime) WriteWarning(message string) {
	_, _ = warningColor.Fprintln(r.Errors, "WARNING: "+message)
}

func (r *ConsoleRuntime) writeTable(header []string, rows [][]string) error {
	table := tablewriter.NewWriter(r.Output)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.AppendBulk(rows)
	table.Render()
	return nil
}

var headerCaser = cases.Title(language.English)

// tableRows converts struct or slice of structs to table.
func tableRows(value any) ([]string, [][]string, bool) {
	v := reflect.Indirect(reflect.ValueOf(value))
	var items []reflect.Value
	var typ reflect.Type
	switch v.Kind() {
	case reflect.Struct:
		// Wrappers like {"clusters": [...]} are rendered as their list.
		if v.NumField() == 1 && v.Field(0).Kind() == reflect.Slice {
			return tableRows(v.Field(0).Interface())
		}
		items = append(items, v)
		typ = v.Type()
	case reflect.Slice, reflect.Array:
		typ = v.Type().Elem()
		if typ.Kind() != reflect.Struct {
			return nil, nil, false
		}
		for i := 0; i < v.Len(); i++ {
			items = append(items, v.Index(i))
		}
	default:
		return nil, nil, false
	}
	var header []string
	var fields []int
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		name := columnName(field)
		if name == "" {
			continue
		}
		header = append(header, name)
		fields = append(fields, i)
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		row := make([]string, 0, len(fields))
		for _, i := range fields {
			row = append(row, formatCell(item.Field(i)))
		}
		rows = append(rows, row)
	}
	return header, rows, true
}

func columnName(field reflect.StructField) string {
	if !field.IsExported() {
		return ""
	}
	name := field.Name
	if tag, ok := field.Tag.Lookup("json"); ok {
		tag, _, _ = strings.Cut(tag, ",")
		if tag == "-" {
			return ""
		}
		if tag != "" {
			name = tag
		}
	}
	return headerCaser.String(strings.ReplaceAll(name, "_", " "))
}

var timeType = reflect.TypeOf(time.Time{})

func formatCell(v reflect.Value) string {
	if s, ok := scalarCell(v); ok {
		return s
	}
	data, err := json.Marshal(v.Interface())
	if err != nil {
		return fmt.Sprint(v.Interface())
	}
	return string(data)
}

func scalarCell(v reflect.Value) (string, bool) {
	if !v.IsValid() {
		return "", true
	}
	if v.Type() == timeType {
		t := v.Interface().(time.Time)
		if t.IsZero() {
			return "", true
		}
		return t.Format(time.RFC3339), true
	}
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String(), true
	}
	switch v.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprint(v.Interface()), true
	default:
		return "", false
	}
}
