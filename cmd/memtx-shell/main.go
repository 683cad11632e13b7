// memtx-shell is an interactive DML shell for a single in-memory space,
// modeled on the reference implementation's cmd/sloty REPL: a liner-backed
// readline loop dispatching fixed-form commands, with persistent history.
//
// Usage:
//
//	memtx-shell [flags]
//
// Commands (in REPL):
//
//	insert <id> <name> <score>   Insert a row (id=unsigned, name=string, score=number)
//	replace <id> <name> <score>  Replace (or insert) a row
//	delete <id>                  Delete a row by primary key
//	get <id>                     Look up a row by primary key
//	scan [limit]                 List rows in primary-key order
//	count                        Number of rows
//	help                         Show this help
//	exit / quit / q              Exit
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/memtx"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "memtx-shell: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	spaceName := flag.StringP("space", "s", "shell", "space name")
	flag.Parse()

	format := memtx.Format{
		memtx.FieldTypeUnsigned,
		memtx.FieldTypeString,
		memtx.FieldTypeNumber,
	}

	space := memtx.NewSpace(*spaceName, format)

	if err := space.AddPrimaryKey(&memtx.IndexDef{
		Name:   "primary",
		Type:   memtx.IndexTypeTree,
		Unique: true,
		Parts:  []memtx.KeyPartDef{{FieldIndex: 0, FieldType: memtx.FieldTypeUnsigned}},
	}, memtx.RecoveryNormal); err != nil {
		return fmt.Errorf("create primary index: %w", err)
	}

	repl := &shellREPL{space: space}

	return repl.Run()
}

type shellREPL struct {
	space *memtx.Space
	liner *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".memtx_shell_history")
}

func (r *shellREPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		_ = f.Close()
	}

	fmt.Printf("memtx-shell - space %q\n", r.space.Name)
	fmt.Println("Type 'help' for available commands.")

	for {
		line, err := r.liner.Prompt("memtx> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			r.saveHistory()

			return nil
		case "help", "?":
			r.printHelp()
		case "insert":
			r.cmdInsertOrReplace(args, false)
		case "replace":
			r.cmdInsertOrReplace(args, true)
		case "delete", "del":
			r.cmdDelete(args)
		case "get":
			r.cmdGet(args)
		case "scan", "ls":
			r.cmdScan(args)
		case "count":
			fmt.Println(r.space.Primary().Size())
		default:
			fmt.Printf("unknown command: %s (type 'help')\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

func (r *shellREPL) saveHistory() {
	path := historyFile()
	if path == "" {
		return
	}

	if f, err := os.Create(path); err == nil {
		_, _ = r.liner.WriteHistory(f)
		_ = f.Close()
	}
}

func (r *shellREPL) printHelp() {
	fmt.Print(`Commands:
  insert <id> <name> <score>   Insert a row
  replace <id> <name> <score>  Replace (or insert) a row
  delete <id>                  Delete a row by primary key
  get <id>                     Look up a row by primary key
  scan [limit]                 List rows in primary-key order
  count                        Number of rows
  exit / quit / q              Exit
`)
}

func (r *shellREPL) encodeRow(args []string) ([]byte, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("want <id> <name> <score>, got %d args", len(args))
	}

	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}

	score, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}

	return memtx.EncodeFields([]memtx.FieldValue{
		{Type: memtx.FieldTypeUnsigned, Uint: id},
		{Type: memtx.FieldTypeString, Str: args[1]},
		{Type: memtx.FieldTypeNumber, Float: score},
	})
}

func (r *shellREPL) cmdInsertOrReplace(args []string, replace bool) {
	data, err := r.encodeRow(args)
	if err != nil {
		fmt.Println("error:", err)

		return
	}

	var t *memtx.Tuple

	if replace {
		_, t, err = r.space.ExecuteReplace(data)
	} else {
		_, t, err = r.space.ExecuteInsert(data)
	}

	if err != nil {
		fmt.Println("error:", err)

		return
	}

	fmt.Printf("ok: bsize now %d, refcount %d\n", r.space.Bsize(), t.RefCount())
}

func keyFromID(args []string) (memtx.Key, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("want <id>")
	}

	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}

	return memtx.Key{{Type: memtx.FieldTypeUnsigned, Uint: id}}, nil
}

func (r *shellREPL) cmdDelete(args []string) {
	key, err := keyFromID(args)
	if err != nil {
		fmt.Println("error:", err)

		return
	}

	_, old, err := r.space.ExecuteDelete(0, key)
	if err != nil {
		fmt.Println("error:", err)

		return
	}

	if old == nil {
		fmt.Println("not found")

		return
	}

	fmt.Println("deleted")
}

func (r *shellREPL) cmdGet(args []string) {
	key, err := keyFromID(args)
	if err != nil {
		fmt.Println("error:", err)

		return
	}

	rows, err := r.space.ExecuteSelect(0, memtx.IterEq, key, 0, 1)
	if err != nil {
		fmt.Println("error:", err)

		return
	}

	if len(rows) == 0 {
		fmt.Println("not found")

		return
	}

	printRow(rows[0])
}

func (r *shellREPL) cmdScan(args []string) {
	limit := 100

	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			limit = n
		}
	}

	rows, err := r.space.ExecuteSelect(0, memtx.IterAll, nil, 0, limit)
	if err != nil {
		fmt.Println("error:", err)

		return
	}

	for _, row := range rows {
		printRow(row)
	}

	fmt.Printf("%d row(s)\n", len(rows))
}

func printRow(t *memtx.Tuple) {
	fields, err := memtx.DecodeFields(t.DataRange())
	if err != nil {
		fmt.Println("error decoding row:", err)

		return
	}

	parts := make([]string, len(fields))

	for i, f := range fields {
		switch f.Type {
		case memtx.FieldTypeUnsigned:
			parts[i] = strconv.FormatUint(f.Uint, 10)
		case memtx.FieldTypeString:
			parts[i] = f.Str
		case memtx.FieldTypeNumber:
			parts[i] = strconv.FormatFloat(f.Float, 'g', -1, 64)
		default:
			parts[i] = fmt.Sprintf("%+v", f)
		}
	}

	fmt.Println(strings.Join(parts, "\t"))
}
