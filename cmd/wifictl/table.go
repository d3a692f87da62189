// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

package main

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/tungmangtdh3/wifid/wire"
)

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row(header))
	return tw
}

func render(tw table.Writer) string { return tw.Render() + "\n" }

// responseTable renders the fields of rsp.
func responseTable(rsp *wire.Response) string {
	tw := newTable("Field", "Value")
	tw.AppendRow(table.Row{"type", rsp.Type})
	tw.AppendRow(table.Row{"session", rsp.SessionID})
	tw.AppendRow(table.Row{"status", rsp.Status})
	tw.AppendRow(table.Row{"data", strconv.Quote(string(rsp.Data))})
	return render(tw)
}

// typesTable renders the request message types and their numbers.
func typesTable() string {
	tw := newTable("Type", "Name")
	for _, t := range wire.MessageTypes() {
		tw.AppendRow(table.Row{uint16(t), t.String()})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})
	return render(tw)
}

// countTable renders the number of notifications received of each type.
func countTable(counts map[wire.NotificationType]int) string {
	tw := newTable("Notification", "Count")
	keys := make([]wire.NotificationType, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		tw.AppendRow(table.Row{k.String(), fmt.Sprint(counts[k])})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	return render(tw)
}
