package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/agentdesk/workdir/internal/models"
	"github.com/agentdesk/workdir/internal/state"
)

// Swapped by tests.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr           = os.Stderr
)

// errNoInput is returned when a prompt hits end of input before an answer.
var errNoInput = errors.New("no answer on input")

// lineSource is where prompts read answers from. *bufio.Reader is one.
type lineSource interface {
	ReadString(delim byte) (string, error)
}

// lineReader reads one line at a time in a goroutine, so a caller waiting
// for input can give up when its context is canceled. A line still being
// read is handed to the next caller.
type lineReader struct {
	in      *bufio.Reader
	pending chan lineResult
}

type lineResult struct {
	line string
	err  error
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{in: bufio.NewReader(r)}
}

// readLine returns the next line, or ctx.Err() once ctx is done.
func (r *lineReader) readLine(ctx context.Context) (string, error) {
	if r.pending == nil {
		ch := make(chan lineResult, 1)
		r.pending = ch
		go func() {
			line, err := r.in.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}()
	}
	select {
	case res := <-r.pending:
		r.pending = nil
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ctxLines binds a lineReader to one context for use as a lineSource.
type ctxLines struct {
	r   *lineReader
	ctx context.Context
}

func (c ctxLines) ReadString(byte) (string, error) {
	return c.r.readLine(c.ctx)
}

// promptYesNo asks question until the answer is yes or no. An empty answer
// takes def.
func promptYesNo(reader lineSource, out io.Writer, question string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	for {
		fmt.Fprintf(out, "%s %s: ", question, hint)
		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(strings.ToLower(input))
		if err != nil && input == "" {
			if errors.Is(err, io.EOF) {
				return false, errNoInput
			}
			return false, err
		}

		switch input {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Fprintln(out, "Invalid choice, please try again.")
		}
	}
}

// promptLine asks for a value; an empty answer keeps def.
func promptLine(reader lineSource, out io.Writer, label, def string) string {
	if def != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}

// promptConfirmer asks on out and reads the answer from reader before every
// delete.
func promptConfirmer(reader *bufio.Reader, out io.Writer) state.Confirmer {
	return state.ConfirmFunc(func(ctx context.Context, entry models.FileEntry) (bool, error) {
		return confirmDelete(reader, out, entry)
	})
}

// lineConfirmer is promptConfirmer for the shell: waiting for the answer
// stops when the delete's context is canceled.
func lineConfirmer(lines *lineReader, out io.Writer) state.Confirmer {
	return state.ConfirmFunc(func(ctx context.Context, entry models.FileEntry) (bool, error) {
		return confirmDelete(ctxLines{r: lines, ctx: ctx}, out, entry)
	})
}

func confirmDelete(reader lineSource, out io.Writer, entry models.FileEntry) (bool, error) {
	kind := "file"
	if entry.IsDir {
		kind = "directory"
	}
	return promptYesNo(reader, out, fmt.Sprintf("Delete %s '%s'? This cannot be undone.", kind, entry.Path), false)
}

// deleteConfirmer picks the confirmer for a one-shot delete.
func deleteConfirmer(yes bool) state.Confirmer {
	if yes {
		return state.AlwaysConfirm
	}
	return promptConfirmer(bufio.NewReader(stdin), stdout)
}
