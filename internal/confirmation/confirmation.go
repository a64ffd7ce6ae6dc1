package confirmation

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cafe-pos/internal/display"

	"golang.org/x/term"
)

// ErrNotInteractive is returned when a prompt is needed but stdin is not a terminal
var ErrNotInteractive = errors.New("refusing to restore without confirmation: stdin is not a terminal, pass --yes to proceed")

// ErrCancelled is returned when the prompt is interrupted
var ErrCancelled = errors.New("restore cancelled")

// Preview describes what a restore is about to replace
type Preview struct {
	Source    string
	CreatedAt string
	Tenant    string
	Tables    []TableCount
	Files     int
}

// TableCount is the number of rows a table will hold after the restore
type TableCount struct {
	Name  string
	Count int
}

// Service asks the operator before destructive restores
type Service struct {
	printer     *display.Printer
	out         io.Writer
	in          io.Reader
	interactive func() bool
}

// NewService prompts on stdin and writes to out
func NewService(printer *display.Printer, out io.Writer) *Service {
	return &Service{
		printer: printer,
		out:     out,
		in:      os.Stdin,
		interactive: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

// WithInput replaces stdin. The reader is always treated as interactive.
func (s *Service) WithInput(in io.Reader) *Service {
	s.in = in
	s.interactive = func() bool { return true }
	return s
}

// ConfirmRestore prints the preview and asks whether to continue
func (s *Service) ConfirmRestore(ctx context.Context, p Preview, autoApprove bool) (bool, error) {
	if err := s.DisplaySummary(p); err != nil {
		return false, err
	}

	if autoApprove {
		s.printer.Info("Auto-approving restore")
		return true, nil
	}
	if !s.interactive() {
		return false, ErrNotInteractive
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprint(s.out, question)
	answer := make(chan bool, 1)
	failed := make(chan error, 1)
	go func() {
		ok, err := s.prompt(bufio.NewReader(s.in))
		if err != nil {
			failed <- err
			return
		}
		answer <- ok
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(s.out)
		s.printer.Warning("Operation cancelled by user")
		return false, ErrCancelled
	case err := <-failed:
		return false, fmt.Errorf("failed to read user input: %w", err)
	case ok := <-answer:
		return ok, nil
	}
}

// DisplaySummary prints what the restore will replace
func (s *Service) DisplaySummary(p Preview) error {
	s.printer.Header("Restore summary")

	tbl := s.printer.NewTable("Table", "Rows")
	tbl.SetAlignment(1, display.AlignRight)
	for _, t := range p.Tables {
		tbl.AddRow(t.Name, fmt.Sprint(t.Count))
	}
	tbl.AddRow("files", fmt.Sprint(p.Files))
	if err := tbl.Render(s.out); err != nil {
		return err
	}

	fmt.Fprintf(s.out, "\nSource:  %s\n", p.Source)
	if p.CreatedAt != "" {
		fmt.Fprintf(s.out, "Created: %s\n", p.CreatedAt)
	}
	if p.Tenant != "" {
		fmt.Fprintf(s.out, "Tenant:  %s\n", p.Tenant)
	}
	fmt.Fprintln(s.out)
	s.printer.Warning("Every existing row in the tables above will be deleted and replaced.")
	return nil
}

const question = "Do you want to restore this backup? [y/N]: "

func (s *Service) prompt(r *bufio.Reader) (bool, error) {
	for {
		input, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return false, err
		}

		switch strings.ToLower(strings.TrimSpace(input)) {
		case "y", "yes":
			return true, nil
		case "n", "no", "":
			return false, nil
		default:
			fmt.Fprintf(s.out, "Invalid input '%s'. Please enter 'y' for yes or 'n' for no.\n", strings.TrimSpace(input))
			if err == io.EOF {
				return false, nil
			}
			fmt.Fprint(s.out, question)
		}
	}
}
