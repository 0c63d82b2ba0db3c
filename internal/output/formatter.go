package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/dandelion-network/taskctl/pkg/deploymentProbe"
	"github.com/dandelion-network/taskctl/pkg/sessionStore"
	"github.com/dandelion-network/taskctl/pkg/sessionStore/storage"
	"github.com/dandelion-network/taskctl/pkg/taskCodec"
	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

var titleColor = color.New(color.FgCyan, color.Bold)

type Formatter struct {
	format string
	out    io.Writer
}

func NewFormatter(format string) *Formatter {
	return NewFormatterWithWriter(format, os.Stdout)
}

func NewFormatterWithWriter(format string, out io.Writer) *Formatter {
	if format == "" {
		format = FormatTable
	}
	return &Formatter{format: format, out: out}
}

func (f *Formatter) Format() string {
	return f.format
}

// Validate rejects formats the printers cannot render.
func (f *Formatter) Validate() error {
	switch f.format {
	case FormatTable, FormatJSON, FormatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", f.format)
	}
}

// Title prints a section heading; table output only.
func (f *Formatter) Title(title string) {
	if f.format != FormatTable {
		return
	}
	titleColor.Fprintf(f.out, "\n=== %s ===\n", title) //nolint:errcheck
}

func (f *Formatter) PrintTasks(tasks []*types.Task) error {
	switch f.format {
	case FormatJSON:
		return f.printJSON(tasks)
	case FormatYAML:
		return f.printYAML(tasks)
	case FormatTable:
		return f.printTasksTable(tasks)
	default:
		return fmt.Errorf("unsupported output format: %s", f.format)
	}
}

func (f *Formatter) PrintTask(task *types.Task) error {
	switch f.format {
	case FormatJSON:
		return f.printJSON(task)
	case FormatYAML:
		return f.printYAML(task)
	case FormatTable:
		return f.printTaskDetail(task)
	default:
		return fmt.Errorf("unsupported output format: %s", f.format)
	}
}

func (f *Formatter) PrintBids(bids []types.Bid) error {
	switch f.format {
	case FormatJSON:
		return f.printJSON(bids)
	case FormatYAML:
		return f.printYAML(bids)
	case FormatTable:
		if len(bids) == 0 {
			fmt.Fprintln(f.out, "No bids found")
			return nil
		}
		table := f.newTable([]string{"INDEX", "BIDDER"})
		for _, b := range bids {
			table.Append([]string{strconv.Itoa(b.Index), b.Bidder})
		}
		table.Render()
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", f.format)
	}
}

func (f *Formatter) PrintTxResults(results ...*types.TxResult) error {
	switch f.format {
	case FormatJSON:
		return f.printJSON(results)
	case FormatYAML:
		return f.printYAML(results)
	case FormatTable:
		table := f.newTable([]string{"ACTION", "HASH", "TASK", "VERSION", "SIMULATED"})
		for _, r := range results {
			task, version := "", ""
			if r.TaskId != nil {
				task = strconv.FormatUint(*r.TaskId, 10)
			}
			if r.Receipt != nil {
				version = r.Receipt.Version
			}
			table.Append([]string{r.Action, r.Hash, task, version, strconv.FormatBool(r.Simulated)})
		}
		table.Render()
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", f.format)
	}
}

func (f *Formatter) PrintHistory(records []*storage.TxRecord) error {
	switch f.format {
	case FormatJSON:
		return f.printJSON(records)
	case FormatYAML:
		return f.printYAML(records)
	case FormatTable:
		if len(records) == 0 {
			fmt.Fprintln(f.out, "No transactions recorded")
			return nil
		}
		table := f.newTable([]string{"WHEN", "ACTION", "TASK", "STATUS", "HASH"})
		for _, r := range records {
			task := ""
			if r.TaskId != nil {
				task = strconv.FormatUint(*r.TaskId, 10)
			}
			table.Append([]string{
				r.CreatedAt.UTC().Format(time.RFC3339),
				r.Action,
				task,
				string(r.Status),
				shortHash(r.Hash),
			})
		}
		table.Render()
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", f.format)
	}
}

func (f *Formatter) PrintState(state *sessionStore.State) error {
	if f.format != FormatTable {
		return f.Print(state)
	}
	table := f.newTable([]string{"FIELD", "VALUE"})
	table.Append([]string{"Connected", strconv.FormatBool(state.Connected)})
	if state.Account != nil {
		table.Append([]string{"Account", state.Account.Address})
	}
	if state.Network != nil {
		table.Append([]string{"Network", fmt.Sprintf("%s (chain %d)", state.Network.Name, state.Network.ChainId)})
	}
	table.Append([]string{"Balance", state.Balance + " APT"})
	table.Append([]string{"Mode", string(state.Mode)})
	if state.LastError != "" {
		table.Append([]string{"Last error", state.LastError})
	}
	table.Render()
	return nil
}

func (f *Formatter) PrintReport(report *deploymentProbe.Report) error {
	if f.format != FormatTable {
		return f.Print(report)
	}
	fmt.Fprintf(f.out, "Address:  %s\nPackage:  %s\nDeployed: %t\n", report.Address, report.Package, report.Deployed)
	table := f.newTable([]string{"MODULE", "PRESENT"})
	for _, m := range report.Present {
		table.Append([]string{m, "yes"})
	}
	for _, m := range report.Missing {
		table.Append([]string{m, "no"})
	}
	table.Render()
	return nil
}

// Print formats and prints generic data based on the configured format.
func (f *Formatter) Print(data any) error {
	switch f.format {
	case FormatJSON:
		return f.printJSON(data)
	case FormatYAML:
		return f.printYAML(data)
	case FormatTable:
		return f.printGenericTable(data)
	default:
		return fmt.Errorf("unsupported output format: %s", f.format)
	}
}

func (f *Formatter) PrintJSON(data any) error {
	return f.printJSON(data)
}

func (f *Formatter) printJSON(data any) error {
	encoder := json.NewEncoder(f.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func (f *Formatter) printYAML(data any) error {
	encoder := yaml.NewEncoder(f.out)
	defer func(encoder *yaml.Encoder) {
		if err := encoder.Close(); err != nil {
			fmt.Fprintf(f.out, "error closing output: %v\n\n", err)
		}
	}(encoder)
	return encoder.Encode(data)
}

// printGenericTable renders a struct as field/value rows, going through JSON
// to get a generic representation.
func (f *Formatter) printGenericTable(data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(jsonData, &obj); err != nil {
		fmt.Fprintln(f.out, string(jsonData))
		return nil
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := f.newTable([]string{"FIELD", "VALUE"})
	for _, k := range keys {
		table.Append([]string{k, fmt.Sprintf("%v", obj[k])})
	}
	table.Render()
	return nil
}

func (f *Formatter) printTasksTable(tasks []*types.Task) error {
	if len(tasks) == 0 {
		fmt.Fprintln(f.out, "No tasks found")
		return nil
	}
	table := f.newTable([]string{"ID", "TITLE", "STATUS", "REWARD (APT)", "DEADLINE", "CREATOR", "BIDS", "WINNER"})
	for _, t := range tasks {
		table.Append([]string{
			strconv.FormatUint(t.Id, 10),
			t.Title,
			t.Status.String(),
			t.Reward,
			formatDeadline(t.Deadline),
			taskCodec.ShortAddress(t.Creator),
			strconv.Itoa(len(t.Participants)),
			taskCodec.ShortAddress(t.Winner),
		})
	}
	table.Render()
	return nil
}

func (f *Formatter) printTaskDetail(t *types.Task) error {
	f.Title(fmt.Sprintf("TASK %d", t.Id))
	fmt.Fprintf(f.out, "Title:       %s\n", t.Title)
	fmt.Fprintf(f.out, "Status:      %s\n", t.Status)
	fmt.Fprintf(f.out, "Reward:      %s APT (%s octa)\n", t.Reward, t.RewardOcta)
	fmt.Fprintf(f.out, "Deadline:    %s\n", formatDeadline(t.Deadline))
	fmt.Fprintf(f.out, "Creator:     %s\n", t.Creator)
	if t.Winner != "" {
		fmt.Fprintf(f.out, "Winner:      %s\n", t.Winner)
	}
	fmt.Fprintf(f.out, "Locked:      %t\n", t.Locked)
	if t.DisputeDeadline != 0 {
		fmt.Fprintf(f.out, "Dispute by:  %s\n", formatDeadline(t.DisputeDeadline))
	}
	if t.ContentRef != "" {
		fmt.Fprintf(f.out, "Content:     %s\n", t.ContentRef)
	}
	if t.Simulated {
		fmt.Fprintln(f.out, "Simulated:   true")
	}

	description := t.Description
	if t.Content != nil && t.Content.Description != "" {
		description = t.Content.Description
	}
	if description != "" && description != t.ContentRef {
		f.Title("DESCRIPTION")
		fmt.Fprintln(f.out, description)
	}
	if t.Content != nil && t.Content.Requirements != "" {
		f.Title("REQUIREMENTS")
		fmt.Fprintln(f.out, t.Content.Requirements)
	}

	if len(t.Participants) > 0 {
		f.Title("BIDDERS")
		table := f.newTable([]string{"INDEX", "BIDDER"})
		for i, p := range t.Participants {
			table.Append([]string{strconv.Itoa(i), p})
		}
		table.Render()
	}
	return nil
}

func (f *Formatter) newTable(headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(f.out)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetBorder(true)
	return table
}

func formatDeadline(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

func shortHash(hash string) string {
	if len(hash) > 14 {
		return hash[:14] + "..."
	}
	return hash
}
