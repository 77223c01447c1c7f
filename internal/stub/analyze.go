// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stub

import (
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// TABLE
// =============================================================================

// Table is an uploaded CSV file held column by column.
type Table struct {
	Headers []string
	Columns map[string][]string
	Rows    int
}

// ParseTable reads CSV text with a header row. Rows must all have the
// header's width.
func ParseTable(text string) (*Table, error) {
	records, err := csv.NewReader(strings.NewReader(text)).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, errors.New("the file needs a header row and at least one data row")
	}

	t := &Table{
		Headers: records[0],
		Columns: make(map[string][]string, len(records[0])),
		Rows:    len(records) - 1,
	}
	for _, row := range records[1:] {
		for i, h := range t.Headers {
			t.Columns[h] = append(t.Columns[h], strings.TrimSpace(row[i]))
		}
	}
	return t, nil
}

func numeric(values []string) bool {
	for _, v := range values {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return false
		}
	}
	return len(values) > 0
}

// labelColumn prefers a text column named like an appliance and falls
// back to the first non-numeric column.
func (t *Table) labelColumn() string {
	first := ""
	for _, h := range t.Headers {
		if numeric(t.Columns[h]) {
			continue
		}
		lower := strings.ToLower(h)
		for _, hint := range []string{"appliance", "device", "name", "item"} {
			if strings.Contains(lower, hint) {
				return h
			}
		}
		if first == "" {
			first = h
		}
	}
	return first
}

// valueColumn prefers a numeric column named like an energy reading and
// falls back to the last numeric column.
func (t *Table) valueColumn() string {
	last := ""
	for _, h := range t.Headers {
		if !numeric(t.Columns[h]) {
			continue
		}
		lower := strings.ToLower(h)
		for _, hint := range []string{"energy", "kwh", "consumption", "usage"} {
			if strings.Contains(lower, hint) {
				return h
			}
		}
		last = h
	}
	return last
}

type usage struct {
	label string
	total float64
}

// totals sums the value column per label, sorted ascending.
func (t *Table) totals() ([]usage, bool) {
	label, value := t.labelColumn(), t.valueColumn()
	if label == "" || value == "" {
		return nil, false
	}
	sums := make(map[string]float64)
	for i, l := range t.Columns[label] {
		v, _ := strconv.ParseFloat(t.Columns[value][i], 64)
		sums[l] += v
	}
	out := make([]usage, 0, len(sums))
	for l, v := range sums {
		out = append(out, usage{label: l, total: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].total == out[j].total {
			return out[i].label < out[j].label
		}
		return out[i].total < out[j].total
	})
	return out, len(out) > 0
}

// Summary answers an upload: the least and the most used appliance.
func (t *Table) Summary() string {
	u, ok := t.totals()
	if !ok {
		return fmt.Sprintf("Table loaded: %d rows with columns %s.", t.Rows, strings.Join(t.Headers, ", "))
	}
	least, most := u[0], u[len(u)-1]
	return fmt.Sprintf("The least electricity usage appliance is %s (%.2f). The most electricity usage appliance is %s (%.2f).",
		least.label, least.total, most.label, most.total)
}

// Answer responds to a question about the table.
func (t *Table) Answer(query string) string {
	q := strings.ToLower(query)
	u, ok := t.totals()

	switch {
	case containsAny(q, "how many", "count", "rows"):
		return strconv.Itoa(t.Rows)
	case !ok:
		return t.Summary()
	case containsAny(q, "least", "lowest", "minimum", "smallest"):
		return u[0].label
	case containsAny(q, "most", "highest", "maximum", "largest"):
		return u[len(u)-1].label
	case containsAny(q, "total", "sum", "overall"):
		var sum float64
		for _, x := range u {
			sum += x.total
		}
		return strconv.FormatFloat(sum, 'f', 2, 64)
	}
	for _, x := range u {
		if strings.Contains(q, strings.ToLower(x.label)) {
			return strconv.FormatFloat(x.total, 'f', 2, 64)
		}
	}
	return t.Summary()
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// =============================================================================
// CANNED ADVICE
// =============================================================================

var advice = []struct {
	keywords []string
	answer   string
}{
	{
		[]string{"dishwasher", "washing", "laundry", "dryer"},
		"Run the **dishwasher and washing machine** late in the evening when tariffs are lower, use full loads, and prefer eco programs. Air-drying instead of tumble-drying saves about 2-3 kWh per load.",
	},
	{
		[]string{"thermostat", "heating", "heat", "air conditioning", "ac ", "cooling"},
		"Set the thermostat 1-2 degrees closer to the outside temperature. Each degree saves roughly 6% of heating or cooling energy. Schedule it to back off while you are away or asleep.",
	},
	{
		[]string{"light", "lamp", "bulb"},
		"Switch remaining bulbs to **LED**: they use about 75% less energy than incandescent bulbs. Motion sensors help in hallways and garages.",
	},
	{
		[]string{"solar", "battery", "panel"},
		"Shift flexible loads (dishwasher, EV charging, water heating) into the midday solar window, and keep battery charge for the evening peak.",
	},
	{
		[]string{"standby", "idle", "phantom", "tv"},
		"Standby power can reach 5-10% of household use. Put the TV, console and chargers on a switched power strip and turn it off at night.",
	},
	{
		[]string{"fridge", "refrigerator", "freezer"},
		"Keep the fridge at 3-5 °C and the freezer at -18 °C, leave space behind them for airflow, and defrost when ice is thicker than 5 mm.",
	},
}

// Advise returns a canned energy-saving answer for query.
func Advise(query, prevChat string) string {
	q := strings.ToLower(query) + " "
	answer := "Here are three quick wins: run big appliances off-peak, switch to LED lighting, and cut standby power with switched power strips. Upload your usage CSV with ctrl+u and ask about it with /file."
	for _, a := range advice {
		if containsAny(q, a.keywords...) {
			answer = a.answer
			break
		}
	}
	if prevChat != "" {
		answer = "Building on my last answer: " + answer
	}
	return answer
}
