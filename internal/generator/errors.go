package generator

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/flosch/pongo2/v6"
)

var (
	ErrTemplateRead    = errors.New("failed to read template")
	ErrDirectoryCreate = errors.New("failed to create output directory")
	ErrFileWrite       = errors.New("failed to write output file")
)

const (
	ReasonMissing = "must be present in order to create file"
	ReasonInvalid = "does not name a file"
)

// JobError reports a job descriptor that cannot be processed.
type JobError struct {
	Key    string
	Reason string
	Job    string // descriptor as indented JSON
}

func NewJobError(key, reason string, job any) *JobError {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		data = fmt.Appendf(nil, "%+v", job)
	}

	return &JobError{Key: key, Reason: reason, Job: string(data)}
}

func (je *JobError) Error() string {
	return fmt.Sprintf("%q %s.\n%s", je.Key, je.Reason, je.Job)
}

var (
	goTemplateErrRe     = regexp.MustCompile(`template: [^:]+:(\d+):(\d+): (.+)`)
	goTemplateLineErrRe = regexp.MustCompile(`template: [^:]+:(\d+): (.+)`)
)

// TemplateError is a parse or execution failure of a template, annotated with
// the surrounding source lines when the position is known.
type TemplateError struct {
	File    string
	Line    int
	Column  int
	Message string
	Context []string

	err   error
	cause error // failure raised by an include call, if any
}

func NewTemplateError(file string, err error) *TemplateError {
	te := &TemplateError{
		File:    file,
		Message: err.Error(),
		err:     err,
	}

	var perr *pongo2.Error
	if errors.As(err, &perr) {
		te.Line = perr.Line
		te.Column = perr.Column
		if perr.OrigError != nil {
			te.Message = perr.OrigError.Error()
		}
	} else {
		te.parseGoTemplateError(err.Error())
		te.cleanMessage()
	}

	te.loadContext()
	return te
}

// withCause records the error an include call returned. Engines report such
// failures as plain text, so the original error is kept alongside for
// errors.Is and errors.As.
func (te *TemplateError) withCause(err error) *TemplateError {
	te.cause = err
	return te
}

func (te *TemplateError) Unwrap() []error {
	if te.cause == nil {
		return []error{te.err}
	}
	return []error{te.err, te.cause}
}

// parseGoTemplateError pulls the position out of text/template errors, which
// look like: template: name:line:col: message
func (te *TemplateError) parseGoTemplateError(errStr string) {
	if m := goTemplateErrRe.FindStringSubmatch(errStr); m != nil {
		te.Line, _ = strconv.Atoi(m[1])
		te.Column, _ = strconv.Atoi(m[2])
		te.Message = m[3]
		return
	}

	if m := goTemplateLineErrRe.FindStringSubmatch(errStr); m != nil {
		te.Line, _ = strconv.Atoi(m[1])
		te.Message = m[2]
	}
}

func (te *TemplateError) cleanMessage() {
	replacements := []struct{ old, new string }{
		{"can't evaluate field", "unknown field"},
		{"map has no entry for key", "missing key"},
		{"executing", "error in"},
		{"at <", "accessing variable <"},
	}

	for _, r := range replacements {
		te.Message = strings.ReplaceAll(te.Message, r.old, r.new)
	}

	// Remove redundant template name references
	te.Message = strings.ReplaceAll(te.Message, fmt.Sprintf(`"%s" `, filepath.Base(te.File)), "")
}

func (te *TemplateError) loadContext() {
	if te.Line == 0 {
		return
	}

	file, err := os.Open(te.File)
	if err != nil {
		return
	}
	defer func() {
		_ = file.Close()
	}()

	scanner := bufio.NewScanner(file)
	for lineNum := 1; scanner.Scan() && lineNum <= te.Line+2; lineNum++ {
		if lineNum >= te.Line-2 {
			te.Context = append(te.Context, scanner.Text())
		}
	}
}

func (te *TemplateError) Error() string {
	if te.Line == 0 {
		return fmt.Sprintf("template error in %s: %s", te.File, te.Message)
	}

	location := fmt.Sprintf("%s:%d", te.File, te.Line)
	if te.Column > 0 {
		location += fmt.Sprintf(":%d", te.Column)
	}

	return fmt.Sprintf("template error in %s: %s", location, te.Message)
}

// Pretty renders the error with the offending line highlighted.
func (te *TemplateError) Pretty() string {
	if len(te.Context) == 0 {
		return te.Error()
	}

	var (
		fileStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Underline(true)
		lineNumStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		errorLineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
		contextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
		pointerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	)

	var sb strings.Builder
	sb.WriteString(te.Error() + "\n")
	sb.WriteString(fileStyle.Render(te.File) + "\n")

	startLine := max(te.Line-2, 1)
	for i, line := range te.Context {
		current := startLine + i
		lineNum := fmt.Sprintf("%4d │ ", current)

		if current != te.Line {
			sb.WriteString(lineNumStyle.Render(lineNum) + contextStyle.Render(line) + "\n")
			continue
		}

		sb.WriteString(errorLineStyle.Render(lineNum) + errorLineStyle.Render(line) + "\n")
		if te.Column > 0 && te.Column <= len(line) {
			sb.WriteString(strings.Repeat(" ", 6+te.Column) + pointerStyle.Render("^") + "\n")
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}
